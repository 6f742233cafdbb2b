package flac

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SeekOptions selects which strategies SeekToPCMFrame may use. They are
// tried in field order.
type SeekOptions struct {
	AllowSeekTable    bool
	AllowBinarySearch bool
	AllowBruteForce   bool
}

// DefaultSeekOptions enables every strategy.
func DefaultSeekOptions() SeekOptions {
	return SeekOptions{AllowSeekTable: true, AllowBinarySearch: true, AllowBruteForce: true}
}

func (o SeekOptions) any() bool {
	return o.AllowSeekTable || o.AllowBinarySearch || o.AllowBruteForce
}

// Options configures a Decoder. The zero value is usable.
type Options struct {
	// Strict makes invalid frame headers and CRC-16 mismatches fatal
	// instead of skipping to the next sync code.
	Strict bool
	// Seek restricts the seek strategies; nil allows all of them.
	Seek *SeekOptions
	// Logger receives resync and seek diagnostics at debug level.
	Logger *slog.Logger
}

// Decoder decodes a FLAC stream frame by frame. It is not safe for
// concurrent use.
type Decoder struct {
	info     StreamInfo
	strict   bool
	seekOpts SeekOptions
	log      *slog.Logger

	br     *bitReader
	closer io.Closer

	frame Frame
	// pendingHeader is a parsed header whose body has not been decoded yet.
	pendingHeader *FrameHeader
	// pendingErr is a decode failure held back from a read that had
	// already produced PCM frames.
	pendingErr error

	cursor      uint64
	atEnd       bool
	anchor      int64
	streamTable []SeekPoint
	boundTable  []SeekPoint
	bound       bool
	closed      bool
}

// Open reads the metadata of a FLAC stream and returns a Decoder positioned
// at the first PCM frame. Only STREAMINFO and SEEKTABLE bodies are decoded;
// a malformed SEEKTABLE is ignored. Seeking is available when r implements
// io.Seeker.
func Open(r io.Reader, opts *Options) (*Decoder, error) {
	return open(r, nil, opts, false)
}

// OpenWithMetadata is Open with fn called for every metadata block, in
// stream order, before it returns. Every block body is decoded and a
// malformed one fails the open.
func OpenWithMetadata(r io.Reader, fn func(Metadata), opts *Options) (*Decoder, error) {
	if fn == nil {
		return nil, errors.New("flac: nil metadata callback")
	}
	return open(r, fn, opts, false)
}

// OpenRelaxed accepts a stream without the "fLaC" signature and metadata.
// StreamInfo is then taken from the first valid frame header, with an
// unknown total length and no checksum.
func OpenRelaxed(r io.Reader, opts *Options) (*Decoder, error) {
	return open(r, nil, opts, true)
}

// OpenFile opens the named file. The Decoder owns the file and closes it on
// Close.
func OpenFile(path string, opts *Options) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	d, err := Open(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.closer = f
	return d, nil
}

// OpenMemory decodes a stream held in memory. data must not be modified
// while the Decoder is in use.
func OpenMemory(data []byte, opts *Options) (*Decoder, error) {
	return Open(bytes.NewReader(data), opts)
}

func newDecoder(opts *Options) *Decoder {
	d := &Decoder{seekOpts: DefaultSeekOptions()}
	if opts != nil {
		d.strict = opts.Strict
		if opts.Seek != nil {
			d.seekOpts = *opts.Seek
		}
		d.log = opts.Logger
	}
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}
	return d
}

func open(r io.Reader, fn func(Metadata), opts *Options, relaxed bool) (*Decoder, error) {
	d := newDecoder(opts)

	var base int64
	rs, _ := r.(io.ReadSeeker)
	if rs != nil {
		pos, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			// Pipes and the like implement Seek but cannot move.
			rs = nil
		} else {
			base = pos
		}
	}
	var seeker io.Seeker
	if rs != nil {
		seeker = rs
	}

	p := &posReader{r: r, pos: base}
	var sig [4]byte
	if err := p.readFull(sig[:]); err != nil {
		return nil, err
	}
	native := string(sig[:]) == "fLaC" || string(sig[:3]) == "ID3"
	if !native && relaxed {
		d.br = newBitReader(io.MultiReader(bytes.NewReader(sig[:]), r), rs, base)
		if err := d.inferStreamInfo(); err != nil {
			return nil, err
		}
		return d, nil
	}

	if err := readSignature(p, seeker, sig); err != nil {
		return nil, err
	}
	if err := d.readMetadata(p, seeker, fn); err != nil {
		return nil, err
	}
	d.anchor = p.pos
	d.br = newBitReader(r, rs, d.anchor)
	d.log.Debug("opened FLAC stream",
		"rate", d.info.SampleRate,
		"channels", d.info.Channels,
		"bps", d.info.BitsPerSample,
		"frames", d.info.TotalPCMFrames,
		"first_frame", d.anchor,
		"seekpoints", len(d.streamTable))
	return d, nil
}

func (d *Decoder) readMetadata(p *posReader, seeker io.Seeker, fn func(Metadata)) error {
	for first := true; ; first = false {
		typ, last, length, err := readBlockHeader(p)
		if err != nil {
			return err
		}
		if first != (typ == BlockStreamInfo) {
			if first {
				return invalidStream("first metadata block is %s", typ)
			}
			return invalidStream("repeated STREAMINFO block")
		}

		var body []byte
		if fn != nil || typ == BlockStreamInfo || typ == BlockSeekTable {
			body = make([]byte, length)
			if err := p.readFull(body); err != nil {
				return err
			}
		} else if err := p.skip(int64(length), seeker); err != nil {
			return err
		}

		switch {
		case fn != nil:
			v, err := parseBlockBody(typ, body)
			if err != nil {
				return fmt.Errorf("%s block: %w", typ, err)
			}
			switch b := v.(type) {
			case *StreamInfo:
				d.info = *b
			case *SeekTable:
				d.streamTable = b.Points
			}
			fn(Metadata{Type: typ, IsLast: last, Length: length, Body: v})
		case typ == BlockStreamInfo:
			si, err := parseStreamInfo(body)
			if err != nil {
				return err
			}
			d.info = *si
		case typ == BlockSeekTable:
			st, err := parseSeekTable(body)
			if err != nil {
				d.log.Debug("ignoring malformed seek table", "err", err)
				break
			}
			d.streamTable = st.Points
		}

		if last {
			return nil
		}
	}
}

// inferStreamInfo scans for the first valid frame header and derives the
// stream properties from it. The header is kept so that frame is decoded by
// the first read.
func (d *Decoder) inferStreamInfo() error {
	for {
		off, variable, err := d.br.findSync()
		if err != nil {
			if errors.Is(err, ErrOutOfData) {
				return invalidStream("no frame header found")
			}
			return err
		}
		hdr, err := parseFrameHeader(d.br, variable, &d.info, true)
		if errors.Is(err, ErrInvalidHeader) {
			d.log.Debug("skipping invalid frame header", "offset", off, "err", err)
			continue
		}
		if err != nil {
			if errors.Is(err, ErrOutOfData) {
				return invalidStream("no frame header found")
			}
			return err
		}
		hdr.offset = off

		d.info = StreamInfo{
			SampleRate:    hdr.SampleRate,
			Channels:      uint8(hdr.Channels.Count()),
			BitsPerSample: hdr.BitsPerSample,
			MaxBlockSize:  uint16(hdr.BlockSize),
			MinBlockSize:  uint16(hdr.BlockSize),
		}
		if variable {
			d.info.MinBlockSize, d.info.MaxBlockSize = 0, 0xFFFF
		}
		d.anchor = off
		d.pendingHeader = &hdr
		d.log.Debug("inferred stream properties from first frame",
			"rate", d.info.SampleRate,
			"channels", d.info.Channels,
			"bps", d.info.BitsPerSample,
			"first_frame", off)
		return nil
	}
}

// Close releases the Decoder. It closes the file when the Decoder was made
// by OpenFile.
func (d *Decoder) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	d.frame = Frame{}
	d.pendingHeader = nil
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// Info returns the stream properties.
func (d *Decoder) Info() StreamInfo { return d.info }

func (d *Decoder) Channels() int { return int(d.info.Channels) }

func (d *Decoder) SampleRate() int { return int(d.info.SampleRate) }

func (d *Decoder) BitsPerSample() int { return int(d.info.BitsPerSample) }

// TotalPCMFrames returns the STREAMINFO length, 0 when unknown.
func (d *Decoder) TotalPCMFrames() uint64 { return d.info.TotalPCMFrames }

// CurrentPCMFrame returns the index of the next PCM frame a read returns.
func (d *Decoder) CurrentPCMFrame() uint64 { return d.cursor }

// FirstFrameOffset returns the absolute byte offset of the first frame.
func (d *Decoder) FirstFrameOffset() int64 { return d.anchor }

// SeekTable returns the active seek table: the bound one, or the stream's
// own. The slice must not be modified.
func (d *Decoder) SeekTable() []SeekPoint {
	if d.bound {
		return d.boundTable
	}
	return d.streamTable
}

// BindSeekTable makes points the table used by seeks. The slice is borrowed
// and must stay unchanged while bound. A nil slice restores the stream's
// SEEKTABLE.
func (d *Decoder) BindSeekTable(points []SeekPoint) {
	d.boundTable = points
	d.bound = points != nil
}

// SetSeekOptions changes the strategies future seeks may use.
func (d *Decoder) SetSeekOptions(o SeekOptions) {
	d.seekOpts = o
}

// CurrentFrame returns the header of the most recently decoded frame.
func (d *Decoder) CurrentFrame() FrameHeader { return d.frame.Header }

type scanMode int

const (
	scanRead  scanMode = iota
	scanProbe          // any bad candidate is skipped
)

// skippable reports whether err rejects only the current candidate frame.
func (d *Decoder) skippable(err error, mode scanMode) bool {
	switch {
	case errors.Is(err, ErrInvalidHeader), errors.Is(err, ErrCRCMismatch):
		return mode == scanProbe || !d.strict
	case errors.Is(err, ErrInvalidData):
		return mode == scanProbe
	}
	return false
}

// readFrame decodes the next frame into d.frame. ErrOutOfData means the
// stream has no further complete frame. A read moves the cursor past any
// damaged frames that were skipped.
func (d *Decoder) readFrame(mode scanMode) error {
	err := d.nextFrame(mode)
	if err == nil && mode == scanRead {
		if first := d.frame.Header.FirstPCMFrame; first > d.cursor {
			d.log.Debug("skipped damaged PCM frames", "from", d.cursor, "to", first)
			d.cursor = first
		}
	}
	return err
}

func (d *Decoder) nextFrame(mode scanMode) error {
	if hdr := d.pendingHeader; hdr != nil {
		d.pendingHeader = nil
		err := decodeFrame(d.br, *hdr, &d.frame)
		if err == nil || !d.skippable(err, mode) {
			return err
		}
		d.log.Debug("discarding frame", "offset", hdr.offset, "err", err)
	}
	for {
		off, variable, err := d.br.findSync()
		if err != nil {
			return err
		}
		hdr, err := parseFrameHeader(d.br, variable, &d.info, false)
		if err == nil {
			hdr.offset = off
			err = decodeFrame(d.br, hdr, &d.frame)
		}
		if err == nil {
			return nil
		}
		if !d.skippable(err, mode) {
			return err
		}
		d.log.Debug("resyncing", "offset", off, "err", err)
	}
}

// resetAt drops all decode state and moves the bit reader to offset.
func (d *Decoder) resetAt(offset int64) error {
	d.frame.remaining = 0
	d.pendingHeader = nil
	d.pendingErr = nil
	d.atEnd = false
	return d.br.seekTo(offset)
}

// rewind moves back to the first frame.
func (d *Decoder) rewind() error {
	if err := d.resetAt(d.anchor); err != nil {
		return err
	}
	d.cursor = 0
	return nil
}

// markEnd positions the decoder after the last PCM frame.
func (d *Decoder) markEnd() {
	if d.info.TotalPCMFrames > 0 {
		d.cursor = d.info.TotalPCMFrames
	}
	d.frame.remaining = 0
	d.pendingHeader = nil
	d.atEnd = true
}
