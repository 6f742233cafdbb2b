package flac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// BlockType identifies a metadata block.
type BlockType uint8

const (
	BlockStreamInfo    BlockType = 0
	BlockPadding       BlockType = 1
	BlockApplication   BlockType = 2
	BlockSeekTable     BlockType = 3
	BlockVorbisComment BlockType = 4
	BlockCueSheet      BlockType = 5
	BlockPicture       BlockType = 6
	blockInvalid       BlockType = 127
)

var blockTypeNames = map[BlockType]string{
	BlockStreamInfo:    "STREAMINFO",
	BlockPadding:       "PADDING",
	BlockApplication:   "APPLICATION",
	BlockSeekTable:     "SEEKTABLE",
	BlockVorbisComment: "VORBIS_COMMENT",
	BlockCueSheet:      "CUESHEET",
	BlockPicture:       "PICTURE",
}

func (t BlockType) String() string {
	if name, ok := blockTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// Metadata is one metadata block. Body holds the decoded block selected by
// Type: *StreamInfo, *Padding, *Application, *SeekTable, *VorbisComment,
// *CueSheet, *Picture or *Unknown.
type Metadata struct {
	Type   BlockType
	IsLast bool
	Length uint32
	Body   any
}

// StreamInfo holds the per-stream properties from the STREAMINFO block.
type StreamInfo struct {
	MinBlockSize   uint16
	MaxBlockSize   uint16
	MinFrameSize   uint32
	MaxFrameSize   uint32
	SampleRate     uint32
	Channels       uint8
	BitsPerSample  uint8
	TotalPCMFrames uint64 // 0 when unknown
	MD5            [16]byte
}

const streamInfoLength = 34

// Padding is an empty block reserved for later metadata edits.
type Padding struct {
	Length uint32
}

// Application carries data registered to a third-party application ID.
type Application struct {
	ID   uint32
	Data []byte
}

// SeekPoint maps a PCM frame to the frame that starts with it. ByteOffset is
// relative to the first frame of the stream.
type SeekPoint struct {
	FirstPCMFrame uint64
	ByteOffset    uint64
	PCMFrameCount uint16
}

// PlaceholderPoint marks an unused seek point.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

func (p SeekPoint) placeholder() bool {
	return p.FirstPCMFrame == PlaceholderPoint
}

// SeekTable lists seek points in ascending PCM frame order.
type SeekTable struct {
	Points []SeekPoint
}

const seekPointLength = 18

// VorbisComment holds the vendor string and raw NAME=value comments.
type VorbisComment struct {
	Vendor   string
	Comments []string
}

// CueSheet describes the track layout of a CD or other medium.
type CueSheet struct {
	Catalog       string
	LeadInSamples uint64
	IsCD          bool
	Tracks        []CueTrack
}

// CueTrack is one track of a CueSheet. Number 170 (CD) or 255 is the lead-out.
type CueTrack struct {
	Offset      uint64
	Number      uint8
	ISRC        string
	IsAudio     bool
	PreEmphasis bool
	Indices     []CueIndex
}

type CueIndex struct {
	Offset uint64
	Number uint8
}

// Picture is an embedded image such as cover art.
type Picture struct {
	PictureType     uint32
	MIME            string
	Description     string
	Width           uint32
	Height          uint32
	ColorDepth      uint32
	IndexColorCount uint32
	Data            []byte
}

// Unknown holds the raw body of a block type this package does not decode.
type Unknown struct {
	Data []byte
}

func invalidStream(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStream, fmt.Sprintf(format, args...))
}

// posReader counts bytes taken from r so the first frame offset is known
// without asking the stream.
type posReader struct {
	r   io.Reader
	pos int64
}

func (p *posReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.pos += int64(n)
	return n, err
}

func (p *posReader) readFull(b []byte) error {
	if _, err := io.ReadFull(p, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return invalidStream("truncated metadata")
		}
		return fmt.Errorf("flac: read metadata: %w", err)
	}
	return nil
}

// skip discards n bytes, seeking over them when possible.
func (p *posReader) skip(n int64, s io.Seeker) error {
	if s != nil {
		if _, err := s.Seek(n, io.SeekCurrent); err != nil {
			return fmt.Errorf("flac: skip metadata: %w", err)
		}
		p.pos += n
		return nil
	}
	if _, err := io.CopyN(io.Discard, p, n); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidStream("truncated metadata")
		}
		return fmt.Errorf("flac: skip metadata: %w", err)
	}
	return nil
}

// readSignature checks the first four bytes of the stream, sig, for the
// "fLaC" marker, skipping an ID3v2 tag in front of it.
func readSignature(p *posReader, s io.Seeker, sig [4]byte) error {
	if string(sig[:3]) == "ID3" {
		var rest [6]byte
		if err := p.readFull(rest[:]); err != nil {
			return err
		}
		// sig[3] is the major version; rest holds the revision, the flags
		// and a synchsafe size.
		size := int64(rest[2]&0x7F)<<21 | int64(rest[3]&0x7F)<<14 | int64(rest[4]&0x7F)<<7 | int64(rest[5]&0x7F)
		if rest[1]&0x10 != 0 {
			size += 10 // footer
		}
		if err := p.skip(size, s); err != nil {
			return err
		}
		if err := p.readFull(sig[:]); err != nil {
			return err
		}
	}
	switch string(sig[:]) {
	case "fLaC":
		return nil
	case "OggS":
		return invalidStream("Ogg encapsulated FLAC is not supported")
	}
	return invalidStream("missing fLaC signature")
}

// readBlockHeader reads the 4-byte header that precedes every block body.
func readBlockHeader(p *posReader) (typ BlockType, last bool, length uint32, err error) {
	var b [4]byte
	if err := p.readFull(b[:]); err != nil {
		return 0, false, 0, err
	}
	last = b[0]&0x80 != 0
	typ = BlockType(b[0] & 0x7F)
	length = uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	if typ == blockInvalid {
		return 0, false, 0, invalidStream("invalid metadata block type 127")
	}
	return typ, last, length, nil
}

func parseStreamInfo(b []byte) (*StreamInfo, error) {
	if len(b) != streamInfoLength {
		return nil, invalidStream("STREAMINFO is %d bytes, want %d", len(b), streamInfoLength)
	}
	si := &StreamInfo{
		MinBlockSize: binary.BigEndian.Uint16(b[0:]),
		MaxBlockSize: binary.BigEndian.Uint16(b[2:]),
		MinFrameSize: uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6]),
		MaxFrameSize: uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9]),
	}
	x := binary.BigEndian.Uint64(b[10:])
	si.SampleRate = uint32(x >> 44)
	si.Channels = uint8(x>>41&0x7) + 1
	si.BitsPerSample = uint8(x>>36&0x1F) + 1
	si.TotalPCMFrames = x & (1<<36 - 1)
	copy(si.MD5[:], b[18:])

	if si.SampleRate == 0 || si.SampleRate > 655350 {
		return nil, invalidStream("sample rate %d", si.SampleRate)
	}
	if si.BitsPerSample < 4 {
		return nil, invalidStream("%d bits per sample", si.BitsPerSample)
	}
	if si.MaxBlockSize != 0 && si.MinBlockSize > si.MaxBlockSize {
		return nil, invalidStream("minimum block size %d above maximum %d", si.MinBlockSize, si.MaxBlockSize)
	}
	return si, nil
}

func parseSeekTable(b []byte) (*SeekTable, error) {
	if len(b)%seekPointLength != 0 {
		return nil, invalidStream("SEEKTABLE length %d is not a multiple of %d", len(b), seekPointLength)
	}
	points := make([]SeekPoint, len(b)/seekPointLength)
	for i := range points {
		p := b[i*seekPointLength:]
		points[i] = SeekPoint{
			FirstPCMFrame: binary.BigEndian.Uint64(p[0:]),
			ByteOffset:    binary.BigEndian.Uint64(p[8:]),
			PCMFrameCount: binary.BigEndian.Uint16(p[16:]),
		}
	}
	return &SeekTable{Points: points}, nil
}

// blockBuffer walks a block body and latches the first overrun.
type blockBuffer struct {
	b   []byte
	off int
	err error
}

func (bb *blockBuffer) take(n int) []byte {
	if bb.err != nil {
		return nil
	}
	if n < 0 || len(bb.b)-bb.off < n {
		bb.err = invalidStream("truncated metadata block")
		return nil
	}
	v := bb.b[bb.off : bb.off+n]
	bb.off += n
	return v
}

func (bb *blockBuffer) u8() uint8 {
	if v := bb.take(1); v != nil {
		return v[0]
	}
	return 0
}

func (bb *blockBuffer) u32() uint32 {
	if v := bb.take(4); v != nil {
		return binary.BigEndian.Uint32(v)
	}
	return 0
}

func (bb *blockBuffer) u32le() uint32 {
	if v := bb.take(4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (bb *blockBuffer) u64() uint64 {
	if v := bb.take(8); v != nil {
		return binary.BigEndian.Uint64(v)
	}
	return 0
}

// cstring returns a fixed-width NUL-padded field.
func (bb *blockBuffer) cstring(n int) string {
	v := bb.take(n)
	for i, c := range v {
		if c == 0 {
			return string(v[:i])
		}
	}
	return string(v)
}

func parseVorbisComment(b []byte) (*VorbisComment, error) {
	bb := &blockBuffer{b: b}
	vc := &VorbisComment{Vendor: string(bb.take(int(bb.u32le())))}
	n := bb.u32le()
	// Each comment takes at least its 4-byte length.
	if bb.err == nil && uint64(n)*4 > uint64(len(b)-bb.off) {
		return nil, invalidStream("VORBIS_COMMENT claims %d comments", n)
	}
	for i := uint32(0); i < n && bb.err == nil; i++ {
		vc.Comments = append(vc.Comments, string(bb.take(int(bb.u32le()))))
	}
	if bb.err != nil {
		return nil, bb.err
	}
	return vc, nil
}

func parseCueSheet(b []byte) (*CueSheet, error) {
	bb := &blockBuffer{b: b}
	cs := &CueSheet{
		Catalog:       bb.cstring(128),
		LeadInSamples: bb.u64(),
	}
	cs.IsCD = bb.u8()&0x80 != 0
	bb.take(258)
	tracks := int(bb.u8())
	for i := 0; i < tracks && bb.err == nil; i++ {
		t := CueTrack{
			Offset: bb.u64(),
			Number: bb.u8(),
			ISRC:   bb.cstring(12),
		}
		flags := bb.u8()
		t.IsAudio = flags&0x80 == 0
		t.PreEmphasis = flags&0x40 != 0
		bb.take(13)
		indices := int(bb.u8())
		for j := 0; j < indices && bb.err == nil; j++ {
			idx := CueIndex{Offset: bb.u64(), Number: bb.u8()}
			bb.take(3)
			t.Indices = append(t.Indices, idx)
		}
		cs.Tracks = append(cs.Tracks, t)
	}
	if bb.err != nil {
		return nil, bb.err
	}
	return cs, nil
}

func parsePicture(b []byte) (*Picture, error) {
	bb := &blockBuffer{b: b}
	p := &Picture{PictureType: bb.u32()}
	p.MIME = string(bb.take(int(bb.u32())))
	p.Description = string(bb.take(int(bb.u32())))
	p.Width = bb.u32()
	p.Height = bb.u32()
	p.ColorDepth = bb.u32()
	p.IndexColorCount = bb.u32()
	p.Data = bb.take(int(bb.u32()))
	if bb.err != nil {
		return nil, bb.err
	}
	return p, nil
}

// parseBlockBody decodes a block body into its typed representation.
func parseBlockBody(typ BlockType, b []byte) (any, error) {
	switch typ {
	case BlockStreamInfo:
		return parseStreamInfo(b)
	case BlockPadding:
		return &Padding{Length: uint32(len(b))}, nil
	case BlockApplication:
		if len(b) < 4 {
			return nil, invalidStream("APPLICATION block of %d bytes", len(b))
		}
		return &Application{ID: binary.BigEndian.Uint32(b), Data: b[4:]}, nil
	case BlockSeekTable:
		return parseSeekTable(b)
	case BlockVorbisComment:
		return parseVorbisComment(b)
	case BlockCueSheet:
		return parseCueSheet(b)
	case BlockPicture:
		return parsePicture(b)
	}
	return &Unknown{Data: b}, nil
}
