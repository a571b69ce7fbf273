package ir

// Version constants for the graph representation and the tool.
const (
	// FormatVersion is the version of the canonical graph summary format.
	FormatVersion = "1"

	// ToolVersion is the colgraph release version.
	ToolVersion = "0.1.0"
)
