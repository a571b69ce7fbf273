package graph

import "fmt"

// Graph validation error codes (E200-E299)
const (
	ErrEmptyName         = "E200" // layer name is required
	ErrDuplicateLayer    = "E201" // two layers share a name
	ErrUnknownLayer      = "E202" // dependency map names a missing layer
	ErrUnknownDependency = "E203" // dependency on a missing layer
	ErrCycle             = "E204" // layers depend on each other
	ErrInvalidPartitions = "E205" // partition count below one
	ErrInvalidSubgraph   = "E206" // blockwise steps reference bad slots or steps
	ErrIncompleteIODeps  = "E207" // io dependency missing a partition
	ErrUnknownKey        = "E208" // requested key not produced by any layer
	ErrInvalidState      = "E209" // projection state of the wrong type
)

// ValidationError reports a structural problem with a layer or graph.
type ValidationError struct {
	Layer   string `json:"layer,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("[%s] layer %q: %s", e.Code, e.Layer, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func invalid(code, layer, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Layer: layer, Message: fmt.Sprintf(format, args...)}
}
