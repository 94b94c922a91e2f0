// Package uploads orchestrates one upload batch: moving received files
// into the storage directory under timestamp-prefixed names, fanning
// out to the generator through a bounded worker pool, and materializing
// the combined results as a new CSV dataset.
package uploads
