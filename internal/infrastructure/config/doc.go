// Package config loads and validates Warehouse Twin Core configuration.
//
// Configuration comes from a single YAML file with three layers of
// precedence: hardcoded defaults, file values, then WAREHOUSE_* environment
// variable overrides. Validation runs after all layers are applied so a
// bad override fails fast at startup rather than deep in a subsystem.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
