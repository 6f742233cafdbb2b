package flac

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

// A minimal FLAC encoder for building test streams. It writes exactly the
// predictor, order and partitioning it is told to use.

type bitWriter struct {
	buf   []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) write(v uint64, n uint) {
	for i := n; i > 0; i-- {
		w.cur = w.cur<<1 | byte(v>>(i-1)&1)
		w.nbits++
		if w.nbits == 8 {
			w.buf = append(w.buf, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) writeSigned(v int64, n uint) {
	w.write(uint64(v)&(math.MaxUint64>>(64-n)), n)
}

func (w *bitWriter) writeUnary(q uint64) {
	for ; q > 0; q-- {
		w.write(0, 1)
	}
	w.write(1, 1)
}

func (w *bitWriter) align() {
	for w.nbits != 0 {
		w.write(0, 1)
	}
}

func (w *bitWriter) bytes() []byte {
	w.align()
	return w.buf
}

// subframeSpec describes how one channel is coded.
// crc8Bytes computes the CRC-8 of data from scratch.
func crc8Bytes(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc = crc8Update(crc, b)
	}
	return crc
}

// crc16Bytes computes the CRC-16 of data from scratch.
func crc16Bytes(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc16Update(crc, b)
	}
	return crc
}

type subframeSpec struct {
	kind   SubframeType
	order  int
	wasted uint

	// LPC only.
	coeffs    []int32
	precision uint
	shift     int

	partOrder uint
	// escape forces raw residual partitions.
	escape bool
	// rice fixes the Rice parameter; -1 picks the cheapest.
	rice int
	// method2 forces the 5-bit parameter residual coding.
	method2 bool
}

func fixedSpec(order int) subframeSpec {
	return subframeSpec{kind: SubframeFixed, order: order, rice: -1}
}

func lpcSpec(coeffs []int32, precision uint, shift int) subframeSpec {
	return subframeSpec{kind: SubframeLPC, order: len(coeffs), coeffs: coeffs, precision: precision, shift: shift, rice: -1}
}

// residuals computes what the predictor of spec leaves over from s.
func residuals(s []int32, spec subframeSpec) []int64 {
	res := make([]int64, 0, len(s))
	for i := spec.order; i < len(s); i++ {
		var pred int64
		switch spec.kind {
		case SubframeFixed:
			switch spec.order {
			case 1:
				pred = int64(s[i-1])
			case 2:
				pred = 2*int64(s[i-1]) - int64(s[i-2])
			case 3:
				pred = 3*int64(s[i-1]) - 3*int64(s[i-2]) + int64(s[i-3])
			case 4:
				pred = 4*int64(s[i-1]) - 6*int64(s[i-2]) + 4*int64(s[i-3]) - int64(s[i-4])
			}
		case SubframeLPC:
			var sum int64
			for j, c := range spec.coeffs {
				sum += int64(c) * int64(s[i-j-1])
			}
			pred = sum >> uint(spec.shift)
		}
		res = append(res, int64(s[i])-pred)
	}
	return res
}

func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func riceBits(part []int64, k uint) uint64 {
	var n uint64
	for _, r := range part {
		n += zigzag(r)>>k + 1 + uint64(k)
	}
	return n
}

func signedWidth(part []int64) uint {
	w := uint(1)
	for _, r := range part {
		for r < -(int64(1)<<(w-1)) || r >= int64(1)<<(w-1) {
			w++
		}
	}
	return w
}

// writeResidual writes res, which covers samples[order:] of a block of
// blockSize samples.
func writeResidual(w *bitWriter, res []int64, blockSize, order int, spec subframeSpec) {
	parts := 1 << spec.partOrder
	per := blockSize / parts
	split := make([][]int64, parts)
	rest := res
	for p := range split {
		n := per
		if p == 0 {
			n -= order
		}
		split[p], rest = rest[:n], rest[n:]
	}

	params := make([]uint, parts)
	method2 := spec.method2
	for p, part := range split {
		switch {
		case spec.rice >= 0:
			params[p] = uint(spec.rice)
		default:
			best := uint64(math.MaxUint64)
			for k := uint(0); k < 31; k++ {
				if b := riceBits(part, k); b < best {
					best, params[p] = b, k
				}
			}
		}
		if params[p] >= 15 {
			method2 = true
		}
	}

	paramBits, escapeCode := uint(4), uint64(15)
	if method2 {
		w.write(1, 2)
		paramBits, escapeCode = 5, 31
	} else {
		w.write(0, 2)
	}
	w.write(uint64(spec.partOrder), 4)
	for p, part := range split {
		if spec.escape {
			width := signedWidth(part)
			w.write(escapeCode, paramBits)
			w.write(uint64(width), 5)
			for _, r := range part {
				w.writeSigned(r, width)
			}
			continue
		}
		k := params[p]
		w.write(uint64(k), paramBits)
		for _, r := range part {
			u := zigzag(r)
			w.writeUnary(u >> k)
			w.write(u&(1<<k-1), k)
		}
	}
}

func writeSubframe(w *bitWriter, samples []int32, bps uint, spec subframeSpec) {
	w.write(0, 1)
	switch spec.kind {
	case SubframeConstant:
		w.write(0, 6)
	case SubframeVerbatim:
		w.write(1, 6)
	case SubframeFixed:
		w.write(uint64(8+spec.order), 6)
	case SubframeLPC:
		w.write(uint64(31+spec.order), 6)
	}
	if spec.wasted > 0 {
		w.write(1, 1)
		w.writeUnary(uint64(spec.wasted - 1))
	} else {
		w.write(0, 1)
	}

	width := bps - spec.wasted
	s := make([]int32, len(samples))
	for i, v := range samples {
		s[i] = v >> spec.wasted
	}

	switch spec.kind {
	case SubframeConstant:
		w.writeSigned(int64(s[0]), width)
	case SubframeVerbatim:
		for _, v := range s {
			w.writeSigned(int64(v), width)
		}
	case SubframeFixed, SubframeLPC:
		for _, v := range s[:spec.order] {
			w.writeSigned(int64(v), width)
		}
		if spec.kind == SubframeLPC {
			w.write(uint64(spec.precision-1), 4)
			w.writeSigned(int64(spec.shift), 5)
			for _, c := range spec.coeffs {
				w.writeSigned(int64(c), spec.precision)
			}
		}
		writeResidual(w, residuals(s, spec), len(s), spec.order, spec)
	}
}

func writeCodedNumber(w *bitWriter, v uint64) {
	if v < 0x80 {
		w.write(v, 8)
		return
	}
	n := 2
	for v >= 1<<(5*n+1) {
		n++
	}
	lead := uint64(0xFF<<(8-n)) & 0xFF
	w.write(lead|v>>(6*(n-1)), 8)
	for i := n - 2; i >= 0; i-- {
		w.write(0x80|(v>>(6*i))&0x3F, 8)
	}
}

// frameSpec describes one frame. channels holds the coded subframe
// samples, already decorrelated when assignment asks for it.
type frameSpec struct {
	number     uint64
	variable   bool
	sampleRate uint32
	bps        uint8
	assignment ChannelAssignment
	channels   [][]int32
	subframes  []subframeSpec
	// rateFromInfo and bpsFromInfo code the field as "see STREAMINFO".
	rateFromInfo bool
	bpsFromInfo  bool
}

func encodeFrame(fs frameSpec) []byte {
	w := &bitWriter{}
	w.write(0x3FFE, 14)
	w.write(0, 1)
	if fs.variable {
		w.write(1, 1)
	} else {
		w.write(0, 1)
	}

	blockSize := len(fs.channels[0])
	var bsCode uint64
	var bsExtra, bsExtraBits uint64
	switch {
	case blockSize == 192:
		bsCode = 1
	case blockSize == 576 || blockSize == 1152 || blockSize == 2304 || blockSize == 4608:
		bsCode = 2 + uint64(math.Log2(float64(blockSize/576)))
	case blockSize >= 256 && blockSize <= 32768 && blockSize&(blockSize-1) == 0:
		bsCode = 8 + uint64(math.Log2(float64(blockSize/256)))
	case blockSize <= 256:
		bsCode, bsExtra, bsExtraBits = 6, uint64(blockSize-1), 8
	default:
		bsCode, bsExtra, bsExtraBits = 7, uint64(blockSize-1), 16
	}

	var rateCode, rateExtra, rateExtraBits uint64
	if !fs.rateFromInfo {
		rateCode = 0xFF
		for i, r := range sampleRateCodes {
			if i > 0 && r == fs.sampleRate {
				rateCode = uint64(i)
			}
		}
		if rateCode == 0xFF {
			switch {
			case fs.sampleRate%1000 == 0 && fs.sampleRate/1000 < 256:
				rateCode, rateExtra, rateExtraBits = 12, uint64(fs.sampleRate/1000), 8
			case fs.sampleRate < 65536:
				rateCode, rateExtra, rateExtraBits = 13, uint64(fs.sampleRate), 16
			default:
				rateCode, rateExtra, rateExtraBits = 14, uint64(fs.sampleRate/10), 16
			}
		}
	}

	var sizeCode uint64
	if !fs.bpsFromInfo {
		for i, b := range sampleSizeCodes {
			if i > 0 && b == fs.bps {
				sizeCode = uint64(i)
			}
		}
	}

	w.write(bsCode, 4)
	w.write(rateCode, 4)
	w.write(uint64(fs.assignment), 4)
	w.write(sizeCode, 3)
	w.write(0, 1)
	writeCodedNumber(w, fs.number)
	w.write(bsExtra, uint(bsExtraBits))
	w.write(rateExtra, uint(rateExtraBits))
	w.write(uint64(crc8Bytes(w.buf)), 8)

	side := fs.assignment.sideChannel()
	for ch, samples := range fs.channels {
		bps := uint(fs.bps)
		if ch == side {
			bps++
		}
		writeSubframe(w, samples, bps, fs.subframes[ch])
	}
	w.align()
	w.write(uint64(crc16Bytes(w.buf)), 16)
	return w.bytes()
}

// testStream describes a whole stream. pcm holds the channels as they
// should decode.
type testStream struct {
	sampleRate uint32
	bps        uint8
	pcm        [][]int32
	blockSize  int
	// blockSizes overrides blockSize with a variable block size layout.
	blockSizes []int
	assignment ChannelAssignment
	// spec codes every subframe; nil means fixed order 2.
	spec        *subframeSpec
	noTotal     bool
	noMD5       bool
	seekPoints  int
	extraBlocks []rawBlock
}

type rawBlock struct {
	typ  BlockType
	body []byte
}

type encodedStream struct {
	data []byte
	// frameOffsets are relative to the first frame.
	frameOffsets []int
	firstFrame   int
	frameStarts  []uint64
	interleaved  []int32
	info         StreamInfo
}

func decorrelateForEncoding(a ChannelAssignment, left, right []int32) ([]int32, []int32) {
	s0 := make([]int32, len(left))
	s1 := make([]int32, len(left))
	for i := range left {
		l, r := int64(left[i]), int64(right[i])
		switch a {
		case LeftSide:
			s0[i], s1[i] = int32(l), int32(l-r)
		case RightSide:
			s0[i], s1[i] = int32(l-r), int32(r)
		case MidSide:
			s0[i], s1[i] = int32((l+r)>>1), int32(l-r)
		default:
			s0[i], s1[i] = int32(l), int32(r)
		}
	}
	return s0, s1
}

func pcmMD5(interleaved []int32, bps uint8) [16]byte {
	width := (int(bps) + 7) / 8
	var b []byte
	for _, s := range interleaved {
		for i := 0; i < width; i++ {
			b = append(b, byte(s>>(8*i)))
		}
	}
	return md5.Sum(b)
}

func interleaveChannels(pcm [][]int32) []int32 {
	out := make([]int32, 0, len(pcm)*len(pcm[0]))
	for i := range pcm[0] {
		for _, ch := range pcm {
			out = append(out, ch[i])
		}
	}
	return out
}

func (ts testStream) encode(t testing.TB) encodedStream {
	t.Helper()
	total := len(ts.pcm[0])
	spec := fixedSpec(2)
	if ts.spec != nil {
		spec = *ts.spec
	}

	sizes := ts.blockSizes
	variable := sizes != nil
	if !variable {
		for left := total; left > 0; left -= ts.blockSize {
			sizes = append(sizes, min(ts.blockSize, left))
		}
	}

	enc := encodedStream{interleaved: interleaveChannels(ts.pcm)}
	var frames bytes.Buffer
	minBS, maxBS := math.MaxInt, 0
	minFS, maxFS := math.MaxInt, 0
	pos := 0
	for n, size := range sizes {
		chans := make([][]int32, len(ts.pcm))
		for c := range chans {
			chans[c] = ts.pcm[c][pos : pos+size]
		}
		assignment := ChannelAssignment(len(ts.pcm) - 1)
		if len(chans) == 2 && ts.assignment >= LeftSide {
			assignment = ts.assignment
			chans[0], chans[1] = decorrelateForEncoding(assignment, chans[0], chans[1])
		}
		subs := make([]subframeSpec, len(chans))
		for c := range subs {
			subs[c] = spec
			if spec.kind == SubframeFixed || spec.kind == SubframeLPC {
				if spec.order > size {
					subs[c] = subframeSpec{kind: SubframeVerbatim}
					continue
				}
				// The short final frame may not split as finely.
				for subs[c].partOrder > 0 && (size%(1<<subs[c].partOrder) != 0 || size>>subs[c].partOrder < spec.order) {
					subs[c].partOrder--
				}
			}
		}
		number := uint64(n)
		if variable {
			number = uint64(pos)
		}
		frame := encodeFrame(frameSpec{
			number:     number,
			variable:   variable,
			sampleRate: ts.sampleRate,
			bps:        ts.bps,
			assignment: assignment,
			channels:   chans,
			subframes:  subs,
		})
		enc.frameOffsets = append(enc.frameOffsets, frames.Len())
		enc.frameStarts = append(enc.frameStarts, uint64(pos))
		frames.Write(frame)
		minBS, maxBS = min(minBS, size), max(maxBS, size)
		minFS, maxFS = min(minFS, len(frame)), max(maxFS, len(frame))
		pos += size
	}
	if !variable && len(sizes) > 1 {
		// The short final frame does not count toward the minimum.
		minBS = ts.blockSize
	}

	info := StreamInfo{
		MinBlockSize:  uint16(minBS),
		MaxBlockSize:  uint16(maxBS),
		MinFrameSize:  uint32(minFS),
		MaxFrameSize:  uint32(maxFS),
		SampleRate:    ts.sampleRate,
		Channels:      uint8(len(ts.pcm)),
		BitsPerSample: ts.bps,
	}
	if !ts.noTotal {
		info.TotalPCMFrames = uint64(total)
	}
	if !ts.noMD5 {
		info.MD5 = pcmMD5(enc.interleaved, ts.bps)
	}
	enc.info = info

	blocks := []rawBlock{{BlockStreamInfo, streamInfoBytes(info)}}
	if ts.seekPoints > 0 {
		var points []SeekPoint
		step := max(1, len(sizes)/ts.seekPoints)
		for i := 0; i < len(sizes); i += step {
			points = append(points, SeekPoint{
				FirstPCMFrame: enc.frameStarts[i],
				ByteOffset:    uint64(enc.frameOffsets[i]),
				PCMFrameCount: uint16(sizes[i]),
			})
		}
		points = append(points, SeekPoint{FirstPCMFrame: PlaceholderPoint})
		blocks = append(blocks, rawBlock{BlockSeekTable, seekTableBytes(points)})
	}
	blocks = append(blocks, ts.extraBlocks...)

	var out bytes.Buffer
	out.WriteString("fLaC")
	for i, b := range blocks {
		writeBlock(&out, b, i == len(blocks)-1)
	}
	enc.firstFrame = out.Len()
	out.Write(frames.Bytes())
	enc.data = out.Bytes()
	return enc
}

func writeBlock(out *bytes.Buffer, b rawBlock, last bool) {
	h := byte(b.typ)
	if last {
		h |= 0x80
	}
	n := len(b.body)
	out.Write([]byte{h, byte(n >> 16), byte(n >> 8), byte(n)})
	out.Write(b.body)
}

func streamInfoBytes(si StreamInfo) []byte {
	b := make([]byte, streamInfoLength)
	binary.BigEndian.PutUint16(b[0:], si.MinBlockSize)
	binary.BigEndian.PutUint16(b[2:], si.MaxBlockSize)
	b[4], b[5], b[6] = byte(si.MinFrameSize>>16), byte(si.MinFrameSize>>8), byte(si.MinFrameSize)
	b[7], b[8], b[9] = byte(si.MaxFrameSize>>16), byte(si.MaxFrameSize>>8), byte(si.MaxFrameSize)
	x := uint64(si.SampleRate)<<44 |
		uint64(si.Channels-1)<<41 |
		uint64(si.BitsPerSample-1)<<36 |
		si.TotalPCMFrames&(1<<36-1)
	binary.BigEndian.PutUint64(b[10:], x)
	copy(b[18:], si.MD5[:])
	return b
}

func seekTableBytes(points []SeekPoint) []byte {
	b := make([]byte, 0, len(points)*seekPointLength)
	for _, p := range points {
		b = binary.BigEndian.AppendUint64(b, p.FirstPCMFrame)
		b = binary.BigEndian.AppendUint64(b, p.ByteOffset)
		b = binary.BigEndian.AppendUint16(b, p.PCMFrameCount)
	}
	return b
}

// tone returns a sine wave with a little noise, clamped to bps bits.
func tone(n int, freq, rate float64, bps uint8, seed int64) []int32 {
	rng := rand.New(rand.NewSource(seed))
	peak := float64(int64(1)<<(bps-1)) * 0.7
	limit := int64(1)<<(bps-1) - 1
	s := make([]int32, n)
	for i := range s {
		v := peak*math.Sin(2*math.Pi*freq*float64(i)/rate) + rng.NormFloat64()*peak/200
		x := int64(math.Round(v))
		x = max(-limit-1, min(limit, x))
		s[i] = int32(x)
	}
	return s
}

// noise returns uniformly random samples over the full bps range.
func noise(n int, bps uint8, seed int64) []int32 {
	rng := rand.New(rand.NewSource(seed))
	s := make([]int32, n)
	span := int64(1) << bps
	for i := range s {
		s[i] = int32(rng.Int63n(span) - span/2)
	}
	return s
}

func openStream(t *testing.T, data []byte, opts *Options) *Decoder {
	t.Helper()
	d, err := OpenMemory(data, opts)
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func readAll(t *testing.T, d *Decoder) []int32 {
	t.Helper()
	var out []int32
	buf := make([]int32, 1000*d.Channels())
	for {
		n, err := d.ReadPCMFramesS32(1000, buf)
		if n > 0 {
			out = append(out, buf[:int(n)*d.Channels()]...)
		}
		if err != nil {
			return out
		}
	}
}

func equalSamples(t *testing.T, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
