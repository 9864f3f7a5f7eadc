package ir

// Version constants for the spec format and engine.
const (
	// SpecVersion is the declarative spec format version.
	SpecVersion = "1"

	// EngineVersion is the cascade engine version.
	EngineVersion = "0.1.0"
)
