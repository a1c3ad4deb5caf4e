package hub

import "github.com/user/n8nops/internal/engine"

// ResponseMessage pushes a synthesized instruction response to every
// connected client as soon as the engine produces it.
type ResponseMessage struct {
	Type     string           `json:"type"`
	Response *engine.Response `json:"response"`
	Ts       int64            `json:"ts"`
}

type HelloMessage struct {
	Type      string `json:"type"`
	TaskTypes int    `json:"task_types"`
}

// ClientMessage is the only message shape clients may send. Instructions
// submitted over the socket go through the same engine path as the REST
// endpoint.
type ClientMessage struct {
	Type        string         `json:"type"`
	Instruction string         `json:"instruction,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
