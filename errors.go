package bundlecfg

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEntry   = errors.New("entry is missing")
	ErrInvalidEntry   = errors.New("entry must be a string or an array of strings")
	ErrEmptyBootstrap = errors.New("bootstrap module cannot be empty")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ConfigurationError reports a malformed configuration value. Path is the
// dotted location of the offending value, e.g. "entry.app" or
// "module.rules[1].test". Configuration errors are fatal: callers are expected
// to abort before the bundler runs.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error at %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(path string, format string, args ...any) error {
	return &ConfigurationError{
		Path: path,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...),
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
