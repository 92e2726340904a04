// Package gateway streams live collection mirrors to WebSocket clients.
package gateway

import "github.com/ahmetcoskunkizilkaya/fellowship/internal/content"

// Frame types sent by the server.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// OpMore asks the server to grow the window by one step.
const OpMore = "more"

// Frame is one server-to-client message. Snapshot frames always carry the
// full current mirror; clients replace their view wholesale.
type Frame struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection,omitempty"`
	Window     int            `json:"window,omitempty"`
	Empty      bool           `json:"empty,omitempty"`
	Items      []content.View `json:"items"`
	Reason     string         `json:"reason,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Command is one client-to-server message.
type Command struct {
	Op string `json:"op"`
}
