// Package realtime is a client for speech-to-speech realtime APIs.
//
// A Session composes three parts:
//
//   - a Transport, which owns the connection to the remote service. The
//     WebRTC transport negotiates a peer connection with a local Opus
//     microphone track, one inbound audio track and an ordered
//     "oai-events" data channel. The WebSocket transport carries the same
//     control events without a media leg.
//   - a capture.Capture, which delivers 4096-sample mono frames at 24kHz.
//   - the PCM16 frame codec in package pcm.
//
// # Lifecycle
//
//	client := realtime.NewClient(
//	    realtime.NewHTTPMediator("https://app.example.com/api/realtime-token"),
//	    realtime.WithCaptureDevice(portaudio.Microphone{}),
//	)
//	session := client.NewSession(func(ev realtime.ServerEvent) {
//	    switch ev := ev.(type) {
//	    case *realtime.ResponseAudioDelta:
//	        showSpeaking(true)
//	    case *realtime.ResponseAudioDone:
//	        showSpeaking(false)
//	    case *realtime.ErrorEvent:
//	        log.Println(ev.Error.ToError())
//	    }
//	})
//	if err := session.Init(ctx); err != nil {
//	    return err
//	}
//	defer session.Disconnect()
//
//	session.StartRecording(session.SendAudioChunk)
//	session.SendText("Hello!")
//
// # Errors
//
// Init fails with an error matching ErrCredential, ErrNegotiation or
// ErrDeviceUnavailable under errors.Is. Steady-state sends never fail:
// a message sent while the control channel is not open is dropped and
// logged at debug level, or queued until open with PreOpenQueue.
//
// # Concurrency
//
// Inbound control messages and captured frames are posted to a single
// queue per session and handled in order by one goroutine, so the event
// handler and the recording callback never run concurrently.
package realtime
