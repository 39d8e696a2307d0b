// Package events carries progress and log notifications from the generation
// pipelines to whoever observes a run.
//
// Stages publish *Event values through an EventEmitter supplied by the caller
// of each run. InMemoryEventEmitter fans events out to registered handlers,
// Scaled maps a stage's local progress onto the overall run, and Recorder folds
// events into a Snapshot that the HTTP API serves.
package events
