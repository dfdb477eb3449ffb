package audio

import (
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the length of the canonical PCM RIFF header.
const WAVHeaderSize = 44

// wavStreamingSize marks RIFF and data sizes that were unknown when the
// header was written.
const wavStreamingSize = 0xFFFFFFFF

// WAVHeader returns a canonical 44-byte PCM16 RIFF header. Pass dataLen < 0
// when the payload length is not known yet; the size fields are then set to
// the streaming marker and must be fixed with [FinalizeWAV].
func WAVHeader(sampleRate, channels, dataLen int) []byte {
	h := make([]byte, WAVHeaderSize)
	riffSize := uint32(wavStreamingSize)
	dataSize := uint32(wavStreamingSize)
	if dataLen >= 0 {
		dataSize = uint32(dataLen)
		riffSize = uint32(36 + dataLen)
	}
	blockAlign := channels * 2

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], riffSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// FinalizeWAV rewrites the RIFF and data chunk sizes of a canonical WAV file
// in place so they match len(wav). Payloads that do not start with a
// canonical header are rejected.
func FinalizeWAV(wav []byte) error {
	if len(wav) < WAVHeaderSize || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		return fmt.Errorf("audio: finalize wav: not a canonical PCM header")
	}
	binary.LittleEndian.PutUint32(wav[4:8], uint32(len(wav)-8))
	binary.LittleEndian.PutUint32(wav[40:44], uint32(len(wav)-WAVHeaderSize))
	return nil
}
