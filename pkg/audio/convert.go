package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM16 stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameSize is the number of bytes one sample frame (all channels) occupies.
func (f Format) FrameSize() int { return 2 * max(f.Channels, 1) }

// String renders the format as e.g. "16000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	}
	return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
}

// Converter brings captured frames to a fixed target format. It is not safe
// for concurrent use; give each recording its own.
type Converter struct {
	target Format
	log    *slog.Logger

	mismatch sync.Once
	misalign sync.Once
}

// NewConverter returns a converter to target. A nil logger uses
// [slog.Default].
func NewConverter(target Format, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{target: target, log: log}
}

// Target returns the format every converted frame is in.
func (c *Converter) Target() Format { return c.target }

// Convert returns frame in the target format. A frame already in the target
// format is returned as is. A frame whose length is not a whole number of
// sample frames is dropped: the result carries no data.
func (c *Converter) Convert(frame Frame) Frame {
	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	out := Frame{SampleRate: c.target.SampleRate, Channels: c.target.Channels, Timestamp: frame.Timestamp}

	if len(frame.Data)%src.FrameSize() != 0 {
		c.misalign.Do(func() {
			c.log.Warn("audio: misaligned capture frame dropped", "bytes", len(frame.Data), "format", src.String())
		})
		return out
	}
	if src == c.target {
		return frame
	}
	c.mismatch.Do(func() {
		c.log.Info("audio: converting capture format", "from", src.String(), "to", c.target.String())
	})

	pcm := frame.Data
	channels := src.Channels
	// Any channel change goes through mono, before resampling so fewer
	// samples are interpolated.
	if channels > 1 && channels != c.target.Channels {
		pcm = Downmix(pcm, channels)
		channels = 1
	}
	pcm = Resample(pcm, channels, src.SampleRate, c.target.SampleRate)
	if channels != c.target.Channels {
		pcm = Upmix(pcm, c.target.Channels)
	}
	out.Data = pcm
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			sum += int32(sampleAt(pcm, i*channels+ch))
		}
		putSample(out, i, clamp16(sum/int32(channels)))
	}
	return out
}

// Upmix copies each mono sample into channels interleaved slots.
func Upmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	samples := len(pcm) / 2
	out := make([]byte, samples*2*channels)
	for i := range samples {
		s := sampleAt(pcm, i)
		for ch := range channels {
			putSample(out, i*channels+ch, s)
		}
	}
	return out
}

// Resample converts interleaved PCM16 from srcRate to dstRate by linear
// interpolation per channel. Invalid rates or equal rates return pcm as is.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || channels <= 0 {
		return pcm
	}
	srcFrames := len(pcm) / (2 * channels)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*2*channels)
	step := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			a := float64(sampleAt(pcm, idx*channels+ch))
			b := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(a+(b-a)*frac))
		}
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func putSample(pcm []byte, i int, s int16) {
	binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
}

func clamp16(v int32) int16 {
	return int16(min(max(v, -32768), 32767))
}
