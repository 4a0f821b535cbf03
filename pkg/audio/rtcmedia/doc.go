// Package rtcmedia connects local audio devices to realtime transports.
//
// OpusMicrophone feeds the WebRTC local track with 20ms Opus packets from
// the capture graph. Speaker decodes the remote Opus track to the default
// output device. PCMPlayer plays the PCM16 audio deltas delivered over a
// WebSocket transport.
//
//	client := realtime.NewClient(mediator,
//		realtime.WithMicrophone(rtcmedia.OpusMicrophone{}),
//		realtime.WithPlayback(rtcmedia.Speaker{}),
//	)
package rtcmedia
