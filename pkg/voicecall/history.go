package voicecall

import (
	"encoding/json"

	"github.com/haivivi/callkit/pkg/buffer"
	"github.com/haivivi/callkit/pkg/jsontime"
)

// functionHistorySize is the number of function events a call remembers.
const functionHistorySize = 50

// FunctionEventType tells function call notifications apart.
type FunctionEventType string

const (
	FunctionCall   FunctionEventType = "call"
	FunctionResult FunctionEventType = "result"
)

// FunctionEvent is a function call notification received from the agent.
type FunctionEvent struct {
	Type      FunctionEventType `json:"type"`
	Data      json.RawMessage   `json:"data"`
	Timestamp jsontime.Milli    `json:"timestamp"`
}

func newFunctionHistory() *buffer.RingBuffer[FunctionEvent] {
	return buffer.RingN[FunctionEvent](functionHistorySize)
}
