// Package daemon wires the pipeline together and runs it: the HTTP API
// server, the recurring retention sweeper, and single-instance locking.
package daemon
