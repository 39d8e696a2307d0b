// Package task provides the bounded work execution used throughout the
// service: a non-blocking TaskQueue, a fixed-size WorkerPool that caps how
// many tasks run at once, and a TaskRunner that executes whole generation runs
// in the background for the HTTP API while tracking their status.
package task
