package pcm_test

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/sketchmentor/pkg/pcm"
)

func TestEncode_RoundTripWithinQuantizationError(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.25, -0.999, 0.999, 0.123456, -0.654321}
	got := pcm.Samples(pcm.Encode(in), 1)[0]

	if len(got) != len(in) {
		t.Fatalf("round trip returned %d samples; want %d", len(got), len(in))
	}
	const tolerance = 1.0 / 32767
	for i := range in {
		if diff := math.Abs(float64(got[i] - in[i])); diff > tolerance {
			t.Errorf("sample %d: got %v, want %v (diff %v)", i, got[i], in[i], diff)
		}
	}
}

func TestEncode_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	b := pcm.Encode([]float32{2.0, -2.0})
	if want := []byte{0xFF, 0x7F, 0x00, 0x80}; string(b) != string(want) {
		t.Errorf("Encode clamp = %v; want %v", b, want)
	}
}

func TestEncodeBase64_MatchesEncode(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, -0.2, 0.3}
	want := base64.StdEncoding.EncodeToString(pcm.Encode(in))
	if got := pcm.EncodeBase64(in); got != want {
		t.Errorf("EncodeBase64 = %q; want %q", got, want)
	}
}

func TestDecodeBase64(t *testing.T) {
	t.Parallel()

	raw := []byte{0x01, 0x02, 0x03, 0x04}
	got, err := pcm.DecodeBase64(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("DecodeBase64 = %v; want %v", got, raw)
	}

	if _, err := pcm.DecodeBase64("not!!base64"); err == nil {
		t.Error("DecodeBase64 with invalid input should return an error")
	}
}

func TestSamples_TruncatesIncompleteSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []byte
		channels   int
		wantFrames int
	}{
		{"odd byte count mono", []byte{0x00, 0x10, 0xFF}, 1, 1},
		{"stereo with dangling sample", []byte{1, 0, 2, 0, 3, 0}, 2, 1},
		{"empty", nil, 1, 0},
		{"zero channels treated as mono", []byte{0x00, 0x10}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := pcm.Samples(tt.data, tt.channels)
			for c, ch := range out {
				if len(ch) != tt.wantFrames {
					t.Errorf("channel %d has %d frames; want %d", c, len(ch), tt.wantFrames)
				}
			}
		})
	}
}

func TestSamples_DeinterleavesStereo(t *testing.T) {
	t.Parallel()

	// L = 16384 (0.5), R = -16384 (-0.5).
	data := []byte{0x00, 0x40, 0x00, 0xC0}
	out := pcm.Samples(data, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 channels; got %d", len(out))
	}
	if out[0][0] != 0.5 {
		t.Errorf("left sample = %v; want 0.5", out[0][0])
	}
	if out[1][0] != -0.5 {
		t.Errorf("right sample = %v; want -0.5", out[1][0])
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		n          int
		rate       int
		channels   int
		want       time.Duration
	}{
		{"one second mono 24k", 48000, 24000, 1, time.Second},
		{"half second mono 16k", 16000, 16000, 1, 500 * time.Millisecond},
		{"stereo halves duration", 48000, 24000, 2, 500 * time.Millisecond},
		{"dangling byte ignored", 48001, 24000, 1, time.Second},
		{"zero rate", 48000, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := pcm.Duration(tt.n, tt.rate, tt.channels); got != tt.want {
				t.Errorf("Duration(%d, %d, %d) = %v; want %v", tt.n, tt.rate, tt.channels, got, tt.want)
			}
		})
	}
}
