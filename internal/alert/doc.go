// Package alert records operational events raised by the controller:
// command failures, interlock rejections, device faults, emergency stops.
//
// Alerts are append-only rows in SQLite. Nothing in this process consumes
// them; they exist for operators and external tooling reading the database.
package alert
