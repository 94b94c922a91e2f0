// Package api defines the JSON wire types for the daemon's HTTP API and
// the client the CLI uses to call it.
package api
