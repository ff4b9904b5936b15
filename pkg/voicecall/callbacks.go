package voicecall

import "encoding/json"

// Callbacks are the events a call reports to its owner. Every field is
// optional. Callbacks run one at a time, in order, on a goroutine owned by
// the call; they may call any Call method, including Stop.
type Callbacks struct {
	OnConnectionStatusChanged func(State)

	// OnAudioChunkReceived receives inbound audio payloads as they arrive.
	// When set, built-in playback is bypassed and a payload counts as played
	// once delivered.
	OnAudioChunkReceived func(audio []byte)

	OnFunctionCallStarted func(data json.RawMessage)
	OnFunctionCallResult  func(data json.RawMessage)
	// OnGenericMessage receives every other JSON control message.
	OnGenericMessage func(data json.RawMessage)
}
