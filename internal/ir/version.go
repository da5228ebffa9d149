package ir

// Version constants for the wire protocol and the replication engine.
const (
	// ProtocolVersion is the envelope wire format version.
	ProtocolVersion = "1"

	// EngineVersion is the starcore engine version.
	EngineVersion = "0.1.0"
)
