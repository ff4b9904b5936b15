// Package voicecall implements the client side of a full-duplex voice call
// with a remote voice agent over a single WebSocket connection.
//
// A Call captures microphone audio, resamples it to a fixed rate, quantizes it
// to 16-bit PCM and streams it to the remote peer using one of two wire
// protocols: TelephonyProtocol (JSON envelopes with base64 media) or
// FrameProtocol (protobuf frames plus JSON control messages). Inbound audio is
// scheduled gaplessly on the output device clock, and remote "mark" tokens are
// acknowledged as the audio they refer to finishes playing.
//
// Lifecycle:
//
//	disconnected -> connecting -> connected -> disconnected
//
// Start runs up to Config.MaxAttempts connection attempts. Every attempt
// acquires the microphone, the speaker and the connection from scratch, and
// every exit path releases all of them through the same teardown.
//
// Example:
//
//	call, err := voicecall.New(cfg, voicecall.Devices{
//		Microphone: mic,
//		Speaker:    speaker,
//	}, voicecall.Callbacks{
//		OnConnectionStatusChanged: func(s voicecall.State) { log.Println(s) },
//	})
//	if err != nil {
//		return err
//	}
//	if err := call.Start(ctx); err != nil {
//		return err
//	}
//	defer call.Stop()
//	<-call.Done()
package voicecall
