// Package service contains the application use cases behind the API: creating
// runs, queueing them for background generation, and reporting their state.
// It coordinates the run store, the task runner and the generation pipeline,
// and translates their errors into service-level errors.
package service
