// Package pcm provides the audio formats and the frame codec used by the
// realtime voice client.
//
// Audio travels through the client in two shapes:
//   - an AudioFrame: a []float32 of mono samples in [-1, 1] at 24 kHz,
//     produced by the capture graph in blocks of FrameSamples;
//   - a WireFrame: the base64 text of the same samples packed as 16-bit
//     little-endian PCM, which is what the control channel carries.
//
// EncodeFrame and DecodeFrame convert between the two. Encoding clamps
// out-of-range samples and never fails. The round trip is lossy but
// bounded by one quantization step (1/32767) per sample.
//
// Example usage:
//
//	wire := pcm.EncodeFrame(frame)
//	session.SendAudioChunk(wire)
//
//	// Bytes needed for 20ms of 24kHz audio
//	n := pcm.L16Mono24K.BytesInDuration(20 * time.Millisecond)
package pcm
