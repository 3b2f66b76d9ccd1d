// File: internal/command/envelope.go
package command

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is one command request as received from any transport.
type Envelope struct {
	// Session addresses a session by caller-chosen ID. Empty means "create
	// a session and pick an ID for me".
	Session string `json:"session"`
	// Name is the command to run.
	Name Name `json:"command"`
	// Args holds the command's named arguments, decoded per command. The
	// type is the standard library's RawMessage so envelopes survive both
	// encoding/json and jsoniter transports.
	Args stdjson.RawMessage `json:"args,omitempty"`
	// TimeoutMs overrides the session's default command timeout.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// decodeArgs unmarshals the envelope's args into the command's own argument
// struct. A missing args object is treated as empty so commands without
// required arguments accept a bare envelope.
func decodeArgs(raw jsoniter.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return invalidArg("malformed args: %v", err)
	}
	return nil
}
