package preflight

import (
	"snapsheet/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Paths.ClientDir != "" {
		results = append(results, CheckDirectoryAccess("Client directory", cfg.Paths.ClientDir))
	}

	results = append(results, CheckGenerator(cfg.Generator)...)
	return results
}
