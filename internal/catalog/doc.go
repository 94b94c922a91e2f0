// Package catalog persists the batch journal in SQLite: one row per
// completed upload batch plus the explicit current-dataset pointer.
//
// The pointer is updated in the same transaction that records a batch,
// so readers get an authoritative "current" without rescanning the
// storage directory; the directory scan remains as a fallback when the
// pointed-to file has been swept.
package catalog
