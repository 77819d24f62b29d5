// Package audio provides PCM format helpers and the speech preprocessing chain
// applied to inbound microphone audio before voice activity detection and
// transcription.
//
// All functions assume 16-bit signed little-endian PCM, the wire format used
// throughout the gateway.
package audio

import "encoding/binary"

// BytesToInt16 decodes little-endian 16-bit PCM bytes into samples. A trailing
// odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian 16-bit PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// BytesToFloat64 decodes little-endian 16-bit PCM bytes into normalised samples
// in the range [-1.0, 1.0).
func BytesToFloat64(b []byte) []float64 {
	n := len(b) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768.0
	}
	return out
}

// Float64ToBytes encodes normalised samples as little-endian 16-bit PCM bytes,
// clipping to the valid int16 range.
func Float64ToBytes(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// WrapPCMAsWAV wraps raw PCM audio data in a 44-byte WAV header. APIs that
// expect file uploads (e.g., Whisper transcription) require a container.
func WrapPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, 44+dataSize)

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[44:], pcm)

	return wav
}
