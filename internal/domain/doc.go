// Package domain contains the entities of a generation run: the brief, the
// normalized outline, per-section text and image results, and the run record
// tracked by the API. It has no knowledge of services or storage.
package domain
