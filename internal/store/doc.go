// Package store defines interfaces for run persistence and provides the
// in-process implementation used by the API. Runs live only as long as the
// process; their outputs live in session directories on disk.
package store
