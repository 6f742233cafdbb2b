package audio

import "encoding/binary"

// ToInt16LE converts samples of the given bit depth to 16-bit little-endian
// bytes, scaled by volume percent.
func ToInt16LE(samples []int, bitDepth, volume int) []byte {
	out := make([]byte, len(samples)*2)
	gain := float64(volume) / 100
	for i, s := range samples {
		var v int
		switch {
		case bitDepth > 16:
			v = s >> (bitDepth - 16)
		case bitDepth < 16:
			v = s << (16 - bitDepth)
		default:
			v = s
		}
		if volume != 100 {
			v = int(float64(v) * gain)
		}
		v = max(-32768, min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
