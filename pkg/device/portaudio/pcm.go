// Package portaudio connects the capture controller and the playback engine
// to the host's default audio devices through PortAudio.
//
// The cgo binding is only compiled with the "portaudio" build tag. Without
// it every device reports [ErrUnavailable], which the capture controller
// surfaces as a microphone permission denial and the playback engine
// absorbs as a dropped utterance.
package portaudio

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/MrWong99/carecoach/pkg/audio"
)

// MIMEType is the only container the PortAudio recorder produces.
const MIMEType = "audio/wav"

// ErrUnavailable is returned by every device when PortAudio support was not
// compiled in.
var ErrUnavailable = errors.New("portaudio: audio devices unavailable in this build")

// bufferMillis is the device buffer length for both directions.
const bufferMillis = 100

func framesPerBuffer(sampleRate int) int {
	return sampleRate * bufferMillis / 1000
}

func supportsFormat(mimeType string) bool {
	return mimeType == "" || strings.HasPrefix(mimeType, MIMEType)
}

// pcm16LE encodes samples as little-endian signed 16-bit PCM.
func pcm16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// interleave copies frames of buf starting at offset into dst, interleaving
// channels and zero-filling whatever dst has left. It returns the number of
// frames copied.
func interleave(dst []float32, buf *audio.Buffer, offset int) int {
	channels := len(buf.Channels)
	if channels == 0 {
		clear(dst)
		return 0
	}
	n := min(len(dst)/channels, buf.Frames()-offset)
	n = max(n, 0)
	for i := range n {
		for ch := range channels {
			dst[i*channels+ch] = buf.Channels[ch][offset+i]
		}
	}
	clear(dst[n*channels:])
	return n
}
