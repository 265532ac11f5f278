package config

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by Fault.
var (
	ErrMissingKey = errors.New("missing required key")
	ErrWrongType  = errors.New("wrong value type")
	ErrInvalid    = errors.New("invalid value")
)

// Fault reports a configuration problem at a dotted key path, such as
// "hardware_config.clusters.pes_per_cluster".
type Fault struct {
	Key  string
	Line int // 0 when the key is absent from the file
	Err  error
}

func (f *Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("config key %s (line %d): %v", f.Key, f.Line, f.Err)
	}
	return fmt.Sprintf("config key %s: %v", f.Key, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }
