// Package opus wraps libopus for the media leg of a realtime voice
// session: the local microphone track is Opus encoded and the remote
// track is decoded for playback.
//
// For go build: use pkg-config to find system libopus
package opus

/*
#cgo pkg-config: opus
#include <opus.h>
#include <stdlib.h>

// Wrappers for the variadic opus_encoder_ctl.
static int opus_encoder_set_bitrate(OpusEncoder *enc, opus_int32 bitrate) {
    return opus_encoder_ctl(enc, OPUS_SET_BITRATE(bitrate));
}

static int opus_encoder_set_signal_voice(OpusEncoder *enc) {
    return opus_encoder_ctl(enc, OPUS_SET_SIGNAL(OPUS_SIGNAL_VOICE));
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrClosed is returned by a closed encoder or decoder.
var ErrClosed = errors.New("opus: closed")

// maxPacket is the largest Opus packet libopus will produce.
const maxPacket = 4000

// maxFrame is 120ms at 48kHz, the longest Opus frame.
const maxFrame = 5760

func opusError(op string, code C.int) error {
	return fmt.Errorf("opus: %s: %s", op, C.GoString(C.opus_strerror(code)))
}

// Encoder is a VoIP-tuned Opus encoder.
type Encoder struct {
	rate     int
	channels int
	enc      *C.OpusEncoder
	buf      [maxPacket]byte
}

// NewEncoder creates a voice encoder.
//
// Parameters:
//   - rate: input sample rate (8000, 12000, 16000, 24000 or 48000)
//   - channels: 1 or 2
func NewEncoder(rate, channels int) (*Encoder, error) {
	var code C.int
	enc := C.opus_encoder_create(C.opus_int32(rate), C.int(channels), C.OPUS_APPLICATION_VOIP, &code)
	if code != C.OPUS_OK {
		return nil, opusError("create encoder", code)
	}
	C.opus_encoder_set_signal_voice(enc)
	return &Encoder{rate: rate, channels: channels, enc: enc}, nil
}

// SetBitrate sets the target bitrate in bits per second.
func (e *Encoder) SetBitrate(bps int) error {
	if e.enc == nil {
		return ErrClosed
	}
	if code := C.opus_encoder_set_bitrate(e.enc, C.opus_int32(bps)); code != C.OPUS_OK {
		return opusError("set bitrate", code)
	}
	return nil
}

// Encode encodes one frame of interleaved samples. len(pcm)/channels must
// be a valid Opus frame size (2.5 to 60ms). The returned packet is only
// valid until the next call.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if e.enc == nil {
		return nil, ErrClosed
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	n := C.opus_encode(e.enc,
		(*C.opus_int16)(unsafe.Pointer(&pcm[0])), C.int(len(pcm)/e.channels),
		(*C.uchar)(unsafe.Pointer(&e.buf[0])), C.opus_int32(len(e.buf)))
	if n < 0 {
		return nil, opusError("encode", C.int(n))
	}
	return e.buf[:n], nil
}

// FrameSize returns the samples per channel in a 20ms frame.
func (e *Encoder) FrameSize() int {
	return e.rate / 50
}

// Close releases the encoder. Safe to call multiple times.
func (e *Encoder) Close() {
	if e.enc != nil {
		C.opus_encoder_destroy(e.enc)
		e.enc = nil
	}
}

// Decoder is an Opus decoder.
type Decoder struct {
	rate     int
	channels int
	dec      *C.OpusDecoder
	buf      []int16
}

// NewDecoder creates a decoder producing interleaved int16 samples at rate.
func NewDecoder(rate, channels int) (*Decoder, error) {
	var code C.int
	dec := C.opus_decoder_create(C.opus_int32(rate), C.int(channels), &code)
	if code != C.OPUS_OK {
		return nil, opusError("create decoder", code)
	}
	return &Decoder{
		rate:     rate,
		channels: channels,
		dec:      dec,
		buf:      make([]int16, maxFrame*channels),
	}, nil
}

// Decode decodes one packet. An empty packet runs packet loss
// concealment for one 20ms frame. The returned samples are only valid
// until the next call.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	if d.dec == nil {
		return nil, ErrClosed
	}
	var data *C.uchar
	frames := maxFrame
	if len(packet) > 0 {
		data = (*C.uchar)(unsafe.Pointer(&packet[0]))
	} else {
		frames = d.rate / 50
	}
	n := C.opus_decode(d.dec, data, C.opus_int32(len(packet)),
		(*C.opus_int16)(unsafe.Pointer(&d.buf[0])), C.int(frames), 0)
	if n < 0 {
		return nil, opusError("decode", C.int(n))
	}
	return d.buf[:int(n)*d.channels], nil
}

// SampleRate returns the output sample rate.
func (d *Decoder) SampleRate() int { return d.rate }

// Channels returns the output channel count.
func (d *Decoder) Channels() int { return d.channels }

// Close releases the decoder. Safe to call multiple times.
func (d *Decoder) Close() {
	if d.dec != nil {
		C.opus_decoder_destroy(d.dec)
		d.dec = nil
	}
}
