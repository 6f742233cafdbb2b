package flac

import (
	"bytes"
	"errors"
	"testing"
)

func parseHeaderBytes(data []byte, info *StreamInfo, infer bool) (FrameHeader, error) {
	br := newBitReader(bytes.NewReader(data), nil, 0)
	off, variable, err := br.findSync()
	if err != nil {
		return FrameHeader{}, err
	}
	hdr, err := parseFrameHeader(br, variable, info, infer)
	hdr.offset = off
	return hdr, err
}

func TestParseFrameHeaderCodes(t *testing.T) {
	testCases := []struct {
		name      string
		blockSize int
		rate      uint32
		bps       uint8
	}{
		{"192", 192, 44100, 16},
		{"576", 576, 48000, 16},
		{"4608", 4608, 8000, 8},
		{"256", 256, 96000, 24},
		{"4096", 4096, 44100, 16},
		{"32768", 32768, 192000, 24},
		{"8-bit extra", 8, 44100, 16},
		{"16-bit extra", 1000, 44100, 16},
		{"65536", 65536, 44100, 16},
		{"kHz rate", 1024, 22000, 12},
		{"Hz rate", 1024, 44101, 20},
		{"decahertz rate", 1024, 100010, 32},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := encodeFrame(frameSpec{
				number:     3,
				sampleRate: tc.rate,
				bps:        tc.bps,
				channels:   [][]int32{make([]int32, tc.blockSize)},
				subframes:  []subframeSpec{{kind: SubframeConstant}},
			})
			info := &StreamInfo{SampleRate: tc.rate, BitsPerSample: tc.bps, Channels: 1, MaxBlockSize: uint16(tc.blockSize)}
			hdr, err := parseHeaderBytes(frame, info, false)
			if err != nil {
				t.Fatalf("parseFrameHeader: %v", err)
			}
			if hdr.BlockSize != uint32(tc.blockSize) {
				t.Errorf("BlockSize = %d, want %d", hdr.BlockSize, tc.blockSize)
			}
			if hdr.SampleRate != tc.rate {
				t.Errorf("SampleRate = %d, want %d", hdr.SampleRate, tc.rate)
			}
			if hdr.BitsPerSample != tc.bps {
				t.Errorf("BitsPerSample = %d, want %d", hdr.BitsPerSample, tc.bps)
			}
			if hdr.Number != 3 {
				t.Errorf("Number = %d, want 3", hdr.Number)
			}
			stride := uint64(uint16(tc.blockSize))
			if stride == 0 {
				stride = uint64(tc.blockSize)
			}
			if want := 3 * stride; hdr.FirstPCMFrame != want {
				t.Errorf("FirstPCMFrame = %d, want %d", hdr.FirstPCMFrame, want)
			}
		})
	}
}

func TestParseFrameHeaderFromStreamInfo(t *testing.T) {
	frame := encodeFrame(frameSpec{
		number:       0,
		sampleRate:   44100,
		bps:          16,
		channels:     [][]int32{make([]int32, 16), make([]int32, 16)},
		subframes:    []subframeSpec{{kind: SubframeConstant}, {kind: SubframeConstant}},
		assignment:   1,
		rateFromInfo: true,
		bpsFromInfo:  true,
	})
	info := &StreamInfo{SampleRate: 44100, BitsPerSample: 16, Channels: 2, MaxBlockSize: 16}
	hdr, err := parseHeaderBytes(frame, info, false)
	if err != nil {
		t.Fatalf("parseFrameHeader: %v", err)
	}
	if hdr.SampleRate != 44100 || hdr.BitsPerSample != 16 {
		t.Errorf("got rate %d bps %d, want 44100 and 16", hdr.SampleRate, hdr.BitsPerSample)
	}

	if _, err := parseHeaderBytes(frame, info, true); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("inferring from a header without rate: got %v, want ErrInvalidHeader", err)
	}
}

func TestCodedNumberRoundTrip(t *testing.T) {
	values := []uint64{0, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 1 << 20, 1 << 30, 1<<31 - 1, 1 << 33, 1<<36 - 1}
	for _, v := range values {
		w := &bitWriter{}
		writeCodedNumber(w, v)
		br := newBitReader(bytes.NewReader(w.bytes()), nil, 0)
		got, err := readCodedNumber(br, true)
		if err != nil {
			t.Fatalf("readCodedNumber(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("readCodedNumber = %d, want %d", got, v)
		}
	}
}

// rawHeader builds a header from its code bytes and appends a valid CRC-8.
func rawHeader(codes ...byte) []byte {
	b := append([]byte{0xFF, 0xF8}, codes...)
	return append(b, crc8Bytes(b))
}

func TestParseFrameHeaderRejects(t *testing.T) {
	info := &StreamInfo{SampleRate: 44100, BitsPerSample: 16, Channels: 1, MaxBlockSize: 4096}

	valid := rawHeader(0xC9, 0x08, 0x00)
	if _, err := parseHeaderBytes(valid, info, false); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
	badCRC := append([]byte(nil), valid...)
	badCRC[len(badCRC)-1] ^= 0x01

	testCases := []struct {
		name string
		data []byte
	}{
		{"reserved block size", rawHeader(0x09, 0x08, 0x00)},
		{"invalid sample rate", rawHeader(0xCF, 0x08, 0x00)},
		{"reserved channels", rawHeader(0xC9, 0xB8, 0x00)},
		{"reserved sample size", rawHeader(0xC9, 0x06, 0x00)},
		{"reserved bit", rawHeader(0xC9, 0x09, 0x00)},
		{"CRC-8 mismatch", badCRC},
		{"sample rate change", rawHeader(0xCA, 0x08, 0x00)},
		{"bit depth change", rawHeader(0xC9, 0x0C, 0x00)},
		{"channel count change", rawHeader(0xC9, 0x18, 0x00)},
		{"fixed stream 7-byte number", rawHeader(0xC9, 0x08, 0xFE, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80)},
		{"bad continuation", rawHeader(0xC9, 0x08, 0xC2, 0x40)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseHeaderBytes(tc.data, info, false)
			if !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("got %v, want ErrInvalidHeader", err)
			}
		})
	}
}

func TestFindSyncSkipsGarbage(t *testing.T) {
	data := []byte{0x00, 0xFF, 0xFA, 0x12, 0xFF, 0xFF, 0xF9, 0x00}
	br := newBitReader(bytes.NewReader(data), nil, 0)
	off, variable, err := br.findSync()
	if err != nil {
		t.Fatalf("findSync: %v", err)
	}
	if off != 5 {
		t.Errorf("sync offset = %d, want 5", off)
	}
	if !variable {
		t.Error("0xFFF9 should mark a variable block size frame")
	}

	br = newBitReader(bytes.NewReader([]byte{0xFF, 0xFA, 0xFF}), nil, 0)
	if _, _, err := br.findSync(); !errors.Is(err, ErrOutOfData) {
		t.Errorf("findSync without a sync code: got %v, want ErrOutOfData", err)
	}
}

func TestChannelAssignment(t *testing.T) {
	testCases := []struct {
		c     ChannelAssignment
		count int
		side  int
	}{
		{0, 1, -1},
		{1, 2, -1},
		{7, 8, -1},
		{LeftSide, 2, 1},
		{RightSide, 2, 0},
		{MidSide, 2, 1},
	}
	for _, tc := range testCases {
		if got := tc.c.Count(); got != tc.count {
			t.Errorf("%v.Count() = %d, want %d", tc.c, got, tc.count)
		}
		if got := tc.c.sideChannel(); got != tc.side {
			t.Errorf("%v.sideChannel() = %d, want %d", tc.c, got, tc.side)
		}
	}
}
