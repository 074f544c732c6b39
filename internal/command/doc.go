// Package command implements the durable FIFO command queue.
//
// Every requested operation becomes a row in the commands table and moves
// through PENDING -> IN_PROGRESS -> COMPLETED or FAILED. Rows are never
// deleted, so the table doubles as the execution history. At most one
// command is IN_PROGRESS at any time; EMERGENCY_STOP is the one type
// allowed to jump the FIFO order.
package command
