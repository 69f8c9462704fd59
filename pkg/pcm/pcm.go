// Package pcm converts between floating-point audio samples and the signed
// 16-bit little-endian PCM wire format used by the Gemini Live API, plus the
// base64 layer needed to embed PCM payloads in JSON envelopes.
//
// All conversions are pure functions. Malformed byte lengths never fail:
// trailing bytes that do not complete a full sample (or a full per-channel
// sample group) are truncated.
package pcm

import (
	"encoding/base64"
	"fmt"
	"time"
)

// BytesPerSample is the size of one encoded sample (int16 LE).
const BytesPerSample = 2

// Encode converts float samples in [-1, 1] to signed 16-bit little-endian
// PCM. Samples outside the representable range are clamped.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := int32(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// EncodeBase64 encodes samples as int16 LE PCM and wraps the result in
// standard base64 for envelope transport.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Encode(samples))
}

// DecodeBase64 reverses the base64 layer of [EncodeBase64], returning the
// raw PCM bytes.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return b, nil
}

// Samples reinterprets b as interleaved int16 LE PCM, rescales to float32 in
// [-1, 1], and deinterleaves into one slice per channel. Trailing bytes that
// do not complete a full per-channel sample group are dropped.
func Samples(b []byte, channels int) [][]float32 {
	if channels < 1 {
		channels = 1
	}
	group := BytesPerSample * channels
	frames := len(b) / group

	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := range frames {
		for c := range channels {
			off := f*group + c*BytesPerSample
			v := int16(b[off]) | int16(b[off+1])<<8
			out[c][f] = float32(v) / 32768
		}
	}
	return out
}

// Duration returns the playback length of an n-byte PCM payload at the given
// sample rate and channel count. Incomplete trailing samples do not count.
func Duration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	if channels < 1 {
		channels = 1
	}
	frames := n / (BytesPerSample * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
