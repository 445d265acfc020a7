package swiggy

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by getters and Save before any Fetch or Load.
var ErrNotLoaded = errors.New("swiggy: no orders loaded")

// ConfigurationError reports a request that conflicts with how the facade
// was constructed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("swiggy: configuration: %s", e.Reason)
}
