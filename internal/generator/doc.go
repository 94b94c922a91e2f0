// Package generator invokes the external description generator once per
// image and parses its single-JSON-object output. Failures never
// propagate as errors into a batch: callers substitute the sentinel
// error record so one bad image cannot sink its siblings.
package generator
