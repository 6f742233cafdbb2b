package flac

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

// The L2 cache is a block of big-endian 64-bit words refilled from the
// stream in one read. The L1 cache is the single word currently being
// consumed.
const (
	l2CacheWords = 512
	l2CacheBytes = l2CacheWords * 8
)

// bitReader extracts MSB-first bit fields from a byte stream and keeps a
// running CRC-8 and CRC-16 over every bit it hands out.
type bitReader struct {
	r  io.Reader
	rs io.ReadSeeker // nil when the stream cannot seek

	raw   [l2CacheBytes]byte
	l2    [l2CacheWords]uint64
	l2Len int
	l2Pos int

	// L1 holds its unconsumed bits left-aligned; the bits below them are
	// always zero.
	cache     uint64
	cacheBits uint

	// tail holds the last 1-7 bytes of the stream, which do not fill a word.
	tail     uint64
	tailBits uint

	eof      bool
	srcPos   int64  // absolute offset of the next byte r will yield
	consumed uint64 // bits consumed since the last seekTo

	crc8    uint8
	crc16   uint16
	crcAcc  uint8
	crcBits uint
}

func newBitReader(r io.Reader, rs io.ReadSeeker, pos int64) *bitReader {
	return &bitReader{r: r, rs: rs, srcPos: pos}
}

// reloadCache refills L2 from the stream. A short read marks end of data and
// is not an error; the leftover bytes become the unaligned tail.
func (br *bitReader) reloadCache() error {
	n, err := io.ReadFull(br.r, br.raw[:])
	br.srcPos += int64(n)
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		br.eof = true
	default:
		return fmt.Errorf("flac: read: %w", err)
	}

	words := n / 8
	for i := 0; i < words; i++ {
		br.l2[i] = binary.BigEndian.Uint64(br.raw[i*8:])
	}
	br.l2Len = words
	br.l2Pos = 0

	if rem := n % 8; rem > 0 {
		var t uint64
		for i := 0; i < rem; i++ {
			t |= uint64(br.raw[words*8+i]) << (56 - 8*uint(i))
		}
		br.tail = t
		br.tailBits = uint(rem) * 8
	}
	return nil
}

// refill loads the next word (or the unaligned tail) into L1. It must only be
// called once L1 is empty.
func (br *bitReader) refill() error {
	if br.l2Pos >= br.l2Len && !br.eof {
		if err := br.reloadCache(); err != nil {
			return err
		}
	}
	if br.l2Pos < br.l2Len {
		br.cache = br.l2[br.l2Pos]
		br.cacheBits = 64
		br.l2Pos++
		return nil
	}
	if br.tailBits > 0 {
		br.cache = br.tail
		br.cacheBits = br.tailBits
		br.tail = 0
		br.tailBits = 0
		return nil
	}
	return ErrOutOfData
}

// readBits reads n bits, 0 <= n <= 64, most significant bit first.
func (br *bitReader) readBits(n uint) (uint64, error) {
	if n == 0 {
		return 0, nil
	}

	var v uint64
	if n <= br.cacheBits {
		v = br.cache >> (64 - n)
		br.cache <<= n
		br.cacheBits -= n
	} else {
		hiBits := br.cacheBits
		var hi uint64
		if hiBits > 0 {
			hi = br.cache >> (64 - hiBits)
		}
		br.cache = 0
		br.cacheBits = 0
		if err := br.refill(); err != nil {
			return 0, err
		}
		lo := n - hiBits
		if lo > br.cacheBits {
			br.cache = 0
			br.cacheBits = 0
			return 0, ErrOutOfData
		}
		v = hi<<lo | br.cache>>(64-lo)
		br.cache <<= lo
		br.cacheBits -= lo
	}

	br.consumed += uint64(n)
	br.updateCRC(v, n)
	return v, nil
}

// readSigned reads an n-bit two's complement value.
func (br *bitReader) readSigned(n uint) (int64, error) {
	v, err := br.readBits(n)
	if err != nil || n == 0 {
		return 0, err
	}
	shift := 64 - n
	return int64(v<<shift) >> shift, nil
}

// readUnary counts the zero bits before the next set bit and consumes both.
// The run may span any number of cache reloads.
func (br *bitReader) readUnary() (uint64, error) {
	var zeros uint64
	for {
		if br.cacheBits == 0 {
			if err := br.refill(); err != nil {
				return 0, err
			}
		}
		lz := uint(bits.LeadingZeros64(br.cache))
		if lz < br.cacheBits {
			n := lz + 1
			br.cache <<= n
			br.cacheBits -= n
			br.consumed += uint64(n)
			br.updateCRC(1, n)
			return zeros + uint64(lz), nil
		}
		zeros += uint64(br.cacheBits)
		br.consumed += uint64(br.cacheBits)
		br.updateCRC(0, br.cacheBits)
		br.cache = 0
		br.cacheBits = 0
	}
}

// alignToByte consumes the padding bits up to the next byte boundary.
// Padding counts toward the CRC like any other bit.
func (br *bitReader) alignToByte() error {
	if r := br.cacheBits % 8; r != 0 {
		_, err := br.readBits(r)
		return err
	}
	return nil
}

// bytePos returns the absolute offset of the byte holding the next unread
// bit.
func (br *bitReader) bytePos() int64 {
	unread := int64(br.cacheBits) + int64(br.l2Len-br.l2Pos)*64 + int64(br.tailBits)
	return (br.srcPos*8 - unread) / 8
}

// seekTo moves to an absolute byte offset and drops every cached bit. The
// CRC state is left alone; callers reset it when a new frame starts.
func (br *bitReader) seekTo(offset int64) error {
	if br.rs == nil {
		return ErrNotSeekable
	}
	if _, err := br.rs.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("flac: seek to byte %d: %w", offset, err)
	}
	br.r = br.rs
	br.l2Len = 0
	br.l2Pos = 0
	br.cache = 0
	br.cacheBits = 0
	br.tail = 0
	br.tailBits = 0
	br.eof = false
	br.srcPos = offset
	br.consumed = 0
	return nil
}

func (br *bitReader) resetCRC() {
	br.crc8 = 0
	br.crc16 = 0
	br.crcAcc = 0
	br.crcBits = 0
}

// feedCRC adds a whole byte to both CRCs without reading it. The CRC must be
// byte-aligned.
func (br *bitReader) feedCRC(b byte) {
	br.crc8 = crc8Update(br.crc8, b)
	br.crc16 = crc16Update(br.crc16, b)
}

// updateCRC folds the low n bits of v into the CRCs, a byte at a time.
func (br *bitReader) updateCRC(v uint64, n uint) {
	for n > 0 {
		take := 8 - br.crcBits
		if take > n {
			take = n
		}
		n -= take
		chunk := uint8(v>>n) & uint8(1<<take-1)
		br.crcAcc = br.crcAcc<<take | chunk
		br.crcBits += take
		if br.crcBits == 8 {
			br.feedCRC(br.crcAcc)
			br.crcAcc = 0
			br.crcBits = 0
		}
	}
}
