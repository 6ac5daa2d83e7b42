package model

import "fmt"

// ConfigError reports invalid pipeline configuration. Fatal to the run.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// TransportError reports an oracle call that failed to complete (timeout,
// connectivity). The chunk id lets a caller retry just that chunk.
type TransportError struct {
	Chunk int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oracle call failed for chunk %d: %v", e.Chunk, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedError reports oracle output that failed schema validation.
// Raw carries the offending text for diagnostics.
type MalformedError struct {
	Chunk int
	Raw   string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed extraction for chunk %d: %v", e.Chunk, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// PersistError reports a failure writing or reading a memory artifact.
type PersistError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
