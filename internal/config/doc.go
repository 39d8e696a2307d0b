// Package config loads the service configuration from defaults, an optional
// YAML file, a .env file and LONGFORM_ prefixed environment variables, then
// validates it with struct tags before any component is constructed.
package config
