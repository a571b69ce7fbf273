package tracer

// Mocker is implemented by real values that have a dataless counterpart.
// Blockwise layers swap such literals for their mocks before a dry run.
type Mocker interface {
	Mock() any
}

// TouchData marks all storage underlying v as used.
//
// Tracer arrays are touched; slices and maps are walked. Any other value is
// ignored, so the call is safe on arbitrary task results. Touching is
// idempotent.
func TouchData(v any) {
	switch x := v.(type) {
	case *Array:
		x.TouchData()
	case []any:
		for _, elem := range x {
			TouchData(elem)
		}
	case map[string]any:
		for _, elem := range x {
			TouchData(elem)
		}
	}
}

// IsTracer reports whether v is a tracer array.
func IsTracer(v any) bool {
	_, ok := v.(*Array)
	return ok
}
