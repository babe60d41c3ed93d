package audio

// G.711 μ-law companding. The transport delivers one byte per sample at
// 8 kHz; the AI providers work on 16-bit linear PCM. Both directions use the
// standard ITU-T bias of 0x84 (132) and an 8-segment exponent table.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// mulawExpTable maps the top byte of a biased magnitude to its segment
// number. Index is the high-order bit pattern (magnitude >> 7).
var mulawExpTable = buildMulawExpTable()

func buildMulawExpTable() [256]byte {
	var t [256]byte
	for i := range t {
		switch {
		case i < 2:
			t[i] = 0
		case i < 4:
			t[i] = 1
		case i < 8:
			t[i] = 2
		case i < 16:
			t[i] = 3
		case i < 32:
			t[i] = 4
		case i < 64:
			t[i] = 5
		case i < 128:
			t[i] = 6
		default:
			t[i] = 7
		}
	}
	return t
}

// EncodeMulaw compresses 16-bit little-endian linear PCM to G.711 μ-law,
// one output byte per input sample. Input with an odd byte count has its
// trailing byte ignored.
func EncodeMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		out[i/2] = encodeMulawSample(sample)
	}
	return out
}

// DecodeMulaw expands G.711 μ-law to 16-bit little-endian linear PCM,
// two output bytes per input byte.
func DecodeMulaw(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, b := range ulaw {
		sample := decodeMulawSample(b)
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

func encodeMulawSample(sample int16) byte {
	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := mulawExpTable[(s>>7)&0xFF]
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

func decodeMulawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	sample := (int32(mantissa)<<3 + mulawBias) << exponent
	sample -= mulawBias
	if sign != 0 {
		sample = -sample
	}
	return int16(sample)
}
