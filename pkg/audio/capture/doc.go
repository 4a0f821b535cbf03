// Package capture turns a microphone stream into fixed-size mono frames.
//
// A Capture opens a Device with voice Constraints (24 kHz mono, echo
// cancellation, noise suppression and automatic gain control requested),
// runs every device read through a processing Graph and hands complete
// frames of pcm.FrameSamples samples to a callback:
//
//	c := capture.New(dev)
//	if err := c.Start(func(frame []float32) {
//	    session.SendAudioChunk(pcm.EncodeFrame(frame))
//	}); err != nil {
//	    return err // wraps capture.ErrDeviceUnavailable
//	}
//	defer c.Stop()
//
// The graph downmixes to mono, resamples when the device cannot open at
// the requested rate, and applies a DC blocker, a noise gate and gain
// control according to the constraints. Echo cancellation is forwarded
// to the device; backends without it ignore the flag.
package capture
