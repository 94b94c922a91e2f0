// Package main hosts the snapsheet CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon: uploading image batches, displaying and editing
// the current dataset, listing the batch journal, triggering retention
// sweeps, and configuration scaffolding. It centralizes configuration
// resolution and API address discovery so subcommands can focus on user
// experience instead of wiring.
package main
