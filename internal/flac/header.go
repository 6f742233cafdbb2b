package flac

import "fmt"

// ChannelAssignment is the 4-bit channel code of a frame header. Codes 0-7
// carry 1-8 independent channels; the remaining valid codes carry a
// decorrelated stereo pair.
type ChannelAssignment uint8

const (
	// LeftSide stores left in subframe 0 and side (left-right) in subframe 1.
	LeftSide ChannelAssignment = 8
	// RightSide stores side in subframe 0 and right in subframe 1.
	RightSide ChannelAssignment = 9
	// MidSide stores mid ((left+right)>>1) in subframe 0 and side in subframe 1.
	MidSide ChannelAssignment = 10
)

// Count returns the number of subframes carried by the assignment.
func (c ChannelAssignment) Count() int {
	if c < LeftSide {
		return int(c) + 1
	}
	return 2
}

// Independent reports whether every channel is coded on its own.
func (c ChannelAssignment) Independent() bool {
	return c < LeftSide
}

// sideChannel returns the subframe index holding the side signal, or -1.
func (c ChannelAssignment) sideChannel() int {
	switch c {
	case LeftSide, MidSide:
		return 1
	case RightSide:
		return 0
	}
	return -1
}

func (c ChannelAssignment) String() string {
	switch c {
	case LeftSide:
		return "left/side"
	case RightSide:
		return "right/side"
	case MidSide:
		return "mid/side"
	}
	if c < LeftSide {
		return fmt.Sprintf("%d independent", c.Count())
	}
	return fmt.Sprintf("reserved(%d)", uint8(c))
}

// FrameHeader holds the decoded fields of one frame header.
type FrameHeader struct {
	// FirstPCMFrame is the absolute index of the first PCM frame in the frame.
	// For fixed block size streams it is derived from the frame number.
	FirstPCMFrame uint64
	// Number is the coded frame number (fixed block size) or first sample
	// number (variable block size) as it appears in the bitstream.
	Number            uint64
	VariableBlockSize bool
	SampleRate        uint32
	BlockSize         uint32
	Channels          ChannelAssignment
	BitsPerSample     uint8
	CRC8              uint8

	// offset is the absolute byte offset of the sync code.
	offset int64
}

// Offset returns the absolute byte offset of the frame in the stream.
func (h FrameHeader) Offset() int64 { return h.offset }

var sampleRateCodes = [...]uint32{
	0, 88200, 176400, 192000, 8000, 16000, 22050, 24000,
	32000, 44100, 48000, 96000,
}

// Sample size code 3 is reserved; 0 defers to StreamInfo.
var sampleSizeCodes = [...]uint8{0, 8, 12, 0, 16, 20, 24, 32}

// findSync scans forward from the next byte boundary for a frame sync code
// and returns the offset of its first byte. The CRCs are restarted so they
// cover the frame from the sync code on.
func (br *bitReader) findSync() (offset int64, variable bool, err error) {
	if err := br.alignToByte(); err != nil {
		return 0, false, err
	}
	prevFF := false
	for {
		b, err := br.readBits(8)
		if err != nil {
			return 0, false, err
		}
		// The reserved bit after the 14-bit sync must be zero.
		if prevFF && b&0xFE == 0xF8 {
			br.resetCRC()
			br.feedCRC(0xFF)
			br.feedCRC(byte(b))
			return br.bytePos() - 2, b&1 == 1, nil
		}
		prevFF = b == 0xFF
	}
}

func invalidHeader(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHeader, fmt.Sprintf(format, args...))
}

// parseFrameHeader decodes the header fields that follow a sync code and
// checks them against info. With infer set, fields that defer to StreamInfo
// are rejected and nothing is compared, since info is being established
// from this header.
func parseFrameHeader(br *bitReader, variable bool, info *StreamInfo, infer bool) (FrameHeader, error) {
	hdr := FrameHeader{VariableBlockSize: variable}

	x, err := br.readBits(16)
	if err != nil {
		return hdr, err
	}
	blockSizeCode := uint8(x >> 12)
	sampleRateCode := uint8(x>>8) & 0xF
	channelCode := uint8(x>>4) & 0xF
	sampleSizeCode := uint8(x>>1) & 0x7
	if x&1 != 0 {
		return hdr, invalidHeader("reserved bit set")
	}

	if channelCode > uint8(MidSide) {
		return hdr, invalidHeader("reserved channel assignment %d", channelCode)
	}
	hdr.Channels = ChannelAssignment(channelCode)

	if sampleSizeCode == 3 {
		return hdr, invalidHeader("reserved sample size code")
	}

	if hdr.Number, err = readCodedNumber(br, variable); err != nil {
		return hdr, err
	}

	switch {
	case blockSizeCode == 0:
		return hdr, invalidHeader("reserved block size code")
	case blockSizeCode == 1:
		hdr.BlockSize = 192
	case blockSizeCode <= 5:
		hdr.BlockSize = 576 << (blockSizeCode - 2)
	case blockSizeCode == 6:
		v, err := br.readBits(8)
		if err != nil {
			return hdr, err
		}
		hdr.BlockSize = uint32(v) + 1
	case blockSizeCode == 7:
		v, err := br.readBits(16)
		if err != nil {
			return hdr, err
		}
		hdr.BlockSize = uint32(v) + 1
	default:
		hdr.BlockSize = 256 << (blockSizeCode - 8)
	}

	switch {
	case sampleRateCode < 12:
		hdr.SampleRate = sampleRateCodes[sampleRateCode]
	case sampleRateCode == 12:
		v, err := br.readBits(8)
		if err != nil {
			return hdr, err
		}
		hdr.SampleRate = uint32(v) * 1000
	case sampleRateCode == 13:
		v, err := br.readBits(16)
		if err != nil {
			return hdr, err
		}
		hdr.SampleRate = uint32(v)
	case sampleRateCode == 14:
		v, err := br.readBits(16)
		if err != nil {
			return hdr, err
		}
		hdr.SampleRate = uint32(v) * 10
	default:
		return hdr, invalidHeader("invalid sample rate code")
	}
	hdr.BitsPerSample = sampleSizeCodes[sampleSizeCode]

	want := br.crc8
	got, err := br.readBits(8)
	if err != nil {
		return hdr, err
	}
	hdr.CRC8 = uint8(got)
	if hdr.CRC8 != want {
		return hdr, invalidHeader("CRC-8 0x%02X, want 0x%02X", hdr.CRC8, want)
	}

	if infer {
		if hdr.SampleRate == 0 || hdr.BitsPerSample == 0 {
			return hdr, invalidHeader("sample rate and bit depth must be explicit without STREAMINFO")
		}
	} else {
		if hdr.SampleRate == 0 {
			hdr.SampleRate = info.SampleRate
		} else if hdr.SampleRate != info.SampleRate {
			return hdr, invalidHeader("sample rate %d differs from stream rate %d", hdr.SampleRate, info.SampleRate)
		}
		if hdr.BitsPerSample == 0 {
			hdr.BitsPerSample = info.BitsPerSample
		} else if hdr.BitsPerSample != info.BitsPerSample {
			return hdr, invalidHeader("bit depth %d differs from stream depth %d", hdr.BitsPerSample, info.BitsPerSample)
		}
		if hdr.Channels.Count() != int(info.Channels) {
			return hdr, invalidHeader("%d channels in a %d channel stream", hdr.Channels.Count(), info.Channels)
		}
	}

	hdr.FirstPCMFrame = hdr.Number
	if !variable {
		stride := uint64(info.MaxBlockSize)
		if stride == 0 || infer {
			stride = uint64(hdr.BlockSize)
		}
		hdr.FirstPCMFrame = hdr.Number * stride
	}
	return hdr, nil
}

// readCodedNumber reads the UTF-8 style frame or sample number. Frame
// numbers take at most 6 bytes (31 bits), sample numbers at most 7 (36 bits).
func readCodedNumber(br *bitReader, variable bool) (uint64, error) {
	b0, err := br.readBits(8)
	if err != nil {
		return 0, err
	}

	var extra int
	var v uint64
	switch {
	case b0&0x80 == 0:
		return b0, nil
	case b0&0xE0 == 0xC0:
		extra, v = 1, b0&0x1F
	case b0&0xF0 == 0xE0:
		extra, v = 2, b0&0x0F
	case b0&0xF8 == 0xF0:
		extra, v = 3, b0&0x07
	case b0&0xFC == 0xF8:
		extra, v = 4, b0&0x03
	case b0&0xFE == 0xFC:
		extra, v = 5, b0&0x01
	case b0 == 0xFE && variable:
		extra, v = 6, 0
	default:
		return 0, invalidHeader("malformed coded number lead byte 0x%02X", b0)
	}

	for i := 0; i < extra; i++ {
		b, err := br.readBits(8)
		if err != nil {
			return 0, err
		}
		if b&0xC0 != 0x80 {
			return 0, invalidHeader("malformed coded number continuation 0x%02X", b)
		}
		v = v<<6 | b&0x3F
	}
	return v, nil
}
