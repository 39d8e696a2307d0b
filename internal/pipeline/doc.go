// Package pipeline runs one document generation from brief to packaged
// archive: outline, sections, combined text, illustrations, image insertion,
// packaging and session expiry. Each run gets its own session directory and
// reports progress through an events.EventEmitter owned by the caller.
package pipeline
