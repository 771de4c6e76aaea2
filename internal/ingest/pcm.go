package ingest

import (
	"encoding/binary"
	"math"
)

// EncodePCM converts normalized float32 samples to little-endian
// 16-bit PCM, clamping out-of-range values.
func EncodePCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := sample * math.MaxInt16
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(scaled)))
	}
	return out
}

// DecodePCM converts little-endian 16-bit PCM back to normalized
// float32 samples.
func DecodePCM(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}
