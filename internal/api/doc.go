// Package api exposes generation runs over HTTP. Clients start a run, poll it
// for progress and download the illustrated document or the packaged archive
// once it has finished.
package api
