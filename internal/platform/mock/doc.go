// Package mock provides offline implementations of the generation services.
//
// The mock provider lets the whole pipeline run with no network and no API
// key: the text service answers outline prompts with well-formed JSON sized
// to the requested counts, section prompts with markdown built from the
// requested heading and subheadings, and anything else with a short visual
// description. The image service and fetcher hand back small deterministic
// images.
package mock
