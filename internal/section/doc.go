// Package section generates the text of every outline section.
//
// Each section is a task on a bounded task queue drained by a fixed-size
// worker pool, so no more than Options.Concurrency requests are in flight.
// Results are harvested in completion order, reported to the run's event
// emitter as they arrive, and returned sorted by section index.
//
// A section whose request fails on every attempt is replaced by a short
// placeholder marked degraded. Individual failures never fail the batch.
package section
