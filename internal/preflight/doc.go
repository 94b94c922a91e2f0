// Package preflight provides readiness checks for the external
// generator and filesystem paths the daemon depends on.
//
// The daemon runs RunAll at startup and logs any failed check; uploads
// against a broken generator would otherwise surface only as sentinel
// rows in the produced dataset. The CLI "snapsheet status" command uses
// the same checks to display local readiness next to daemon health.
package preflight
