// Package metrics defines the observability hooks of a generation run and a
// Prometheus implementation of them.
//
// Components accept a Recorder and fall back to NoopRecorder when none is
// configured, so metrics never gate the pipeline.
package metrics
