// Package simerr defines the error kinds from spec §7: configuration and
// mapping problems are caught at load time and reported through these types;
// runtime invariant violations are fatal and never returned as an error.
package simerr

import "fmt"

// ConfigError reports a bad or missing field in an architecture or network
// description, detected while loading the description.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError naming the offending field.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// MappingError reports a neuron or connection mapped to a tile, core, or
// model that does not exist.
type MappingError struct {
	Subject string
	Err     error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping error: %s: %v", e.Subject, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// NewMappingError wraps err as a MappingError naming the offending subject
// (e.g. "group.neuron" or "tile[3].core[1]").
func NewMappingError(subject string, err error) *MappingError {
	return &MappingError{Subject: subject, Err: err}
}

// PluginError reports a failure to open a user-supplied model plugin or to
// resolve its factory symbol.
type PluginError struct {
	Path string
	Err  error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin error: %s: %v", e.Path, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// NewPluginError wraps err as a PluginError naming the plugin path.
func NewPluginError(path string, err error) *PluginError {
	return &PluginError{Path: path, Err: err}
}

// Assertf panics reporting a violated runtime invariant (RuntimeAssertion,
// §7). Invariant violations indicate a bug in the simulator, not a user
// error, so there is no recovery path.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("runtime assertion failed: "+format, args...))
	}
}
