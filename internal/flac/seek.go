package flac

import (
	"errors"
	"fmt"
)

// Binary search gives up after this many probes and decodes forward.
const maxSearchProbes = 64

// Used for the search window when STREAMINFO leaves the frame size unknown.
const defaultMaxFrameSize = 1 << 16

// SeekToPCMFrame positions the decoder so the next read starts at target.
// The seek table is tried first, then a binary search over the byte range
// of the stream, then decoding forward from the first frame, subject to the
// SeekOptions in effect.
//
// A target beyond the known total fails with ErrOutOfRange and leaves the
// decoder at the end of the stream, as does a stream that ends early.
func (d *Decoder) SeekToPCMFrame(target uint64) error {
	if d.closed {
		return ErrClosed
	}
	return d.seek(target, d.seekOpts)
}

func (d *Decoder) seek(target uint64, opts SeekOptions) error {
	d.pendingErr = nil
	total := d.info.TotalPCMFrames
	if total > 0 && target > total {
		d.markEnd()
		return fmt.Errorf("%w: frame %d of %d", ErrOutOfRange, target, total)
	}
	if target == d.cursor {
		return nil
	}
	if total > 0 && target == total {
		d.markEnd()
		return nil
	}

	if d.frame.remaining > 0 {
		start := d.cursor - uint64(d.frame.position())
		if target >= start && target < d.cursor+uint64(d.frame.remaining) {
			d.frame.remaining = uint32(start + uint64(d.frame.Header.BlockSize) - target)
			d.cursor = target
			return nil
		}
	}

	if !opts.any() {
		return ErrSeekDisabled
	}

	// moved is set once a strategy has repositioned the reader, so the
	// cursor no longer describes the read position.
	moved := false
	if opts.AllowSeekTable {
		ok, err := d.seekWithTable(target, &moved)
		if ok || err != nil {
			return err
		}
	}
	if opts.AllowBinarySearch {
		ok, err := d.seekWithBinarySearch(target, &moved)
		if ok || err != nil {
			return err
		}
	}
	if opts.AllowBruteForce {
		return d.seekWithBruteForce(target, moved)
	}

	if moved {
		if err := d.rewind(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: no enabled strategy reached frame %d", ErrSeekDisabled, target)
}

// decodeForwardTo decodes and discards PCM frames until the cursor reaches
// target. When target lies in damaged frames that were skipped, the cursor
// stops at the first frame after them.
func (d *Decoder) decodeForwardTo(target uint64) error {
	for d.cursor < target {
		if d.frame.remaining == 0 {
			err := d.readFrame(scanRead)
			if errors.Is(err, ErrOutOfData) {
				reached := d.cursor
				d.markEnd()
				return fmt.Errorf("%w: stream ends at frame %d before %d", ErrOutOfRange, reached, target)
			}
			if err != nil {
				return err
			}
			// Skipped frames may have carried the cursor to or past target
			continue
		}
		step := min(uint64(d.frame.remaining), target-d.cursor)
		d.frame.remaining -= uint32(step)
		d.cursor += step
	}
	return nil
}

// adoptFrame makes the cursor follow the frame just decoded at a new
// position.
func (d *Decoder) adoptFrame() {
	d.cursor = d.frame.Header.FirstPCMFrame
}

func (d *Decoder) seekWithTable(target uint64, moved *bool) (bool, error) {
	var best SeekPoint
	found := false
	for _, p := range d.SeekTable() {
		if p.placeholder() || p.FirstPCMFrame > target {
			continue
		}
		if !found || p.FirstPCMFrame > best.FirstPCMFrame {
			best, found = p, true
		}
	}
	if !found {
		return false, nil
	}

	// Decoding on from the cursor is no slower than jumping to best.
	if !*moved && d.cursor >= best.FirstPCMFrame && d.cursor <= target {
		return true, d.decodeForwardTo(target)
	}
	if d.br.rs == nil {
		return false, nil
	}

	offset := d.anchor + int64(best.ByteOffset)
	*moved = true
	if err := d.resetAt(offset); err != nil {
		return false, err
	}
	err := d.readFrame(scanProbe)
	if err != nil && !errors.Is(err, ErrOutOfData) {
		return false, err
	}
	hdr := d.frame.Header
	if err != nil || hdr.offset != offset || hdr.FirstPCMFrame != best.FirstPCMFrame {
		d.log.Debug("seek point rejected",
			"frame", best.FirstPCMFrame,
			"offset", best.ByteOffset,
			"err", err)
		return false, nil
	}
	d.adoptFrame()
	return true, d.decodeForwardTo(target)
}

func (d *Decoder) seekWithBinarySearch(target uint64, moved *bool) (bool, error) {
	total := d.info.TotalPCMFrames
	if d.br.rs == nil || total == 0 {
		return false, nil
	}

	frameBytes := (uint64(d.info.Channels)*uint64(d.info.BitsPerSample) + 7) / 8
	maxFrame := int64(d.info.MaxFrameSize)
	if maxFrame == 0 {
		maxFrame = defaultMaxFrameSize
	}
	lo := d.anchor
	hi := d.anchor + int64(total*frameBytes) + maxFrame

	*moved = true
	best := int64(-1)
	for probe := 0; probe < maxSearchProbes && hi-lo > 1; probe++ {
		mid := lo + (hi-lo)/2
		if err := d.resetAt(mid); err != nil {
			return false, err
		}
		err := d.readFrame(scanProbe)
		if errors.Is(err, ErrOutOfData) {
			hi = mid
			continue
		}
		if err != nil {
			return false, err
		}

		hdr := d.frame.Header
		if hdr.FirstPCMFrame > target {
			hi = mid
			continue
		}
		if target < hdr.FirstPCMFrame+uint64(hdr.BlockSize) {
			d.log.Debug("binary search hit", "frame", hdr.FirstPCMFrame, "offset", hdr.offset, "probes", probe+1)
			d.adoptFrame()
			return true, d.decodeForwardTo(target)
		}
		best = hdr.offset
		lo = hdr.offset
	}

	if best < 0 {
		d.log.Debug("binary search found no frame before target", "target", target)
		if err := d.rewind(); err != nil {
			return false, err
		}
		return true, d.decodeForwardTo(target)
	}
	if err := d.resetAt(best); err != nil {
		return false, err
	}
	if err := d.readFrame(scanProbe); err != nil {
		if errors.Is(err, ErrOutOfData) {
			return false, nil
		}
		return false, err
	}
	d.adoptFrame()
	return true, d.decodeForwardTo(target)
}

func (d *Decoder) seekWithBruteForce(target uint64, moved bool) error {
	if moved || target < d.cursor {
		if d.br.rs == nil {
			return fmt.Errorf("%w: cannot return to frame %d", ErrNotSeekable, target)
		}
		if err := d.rewind(); err != nil {
			return err
		}
	}
	return d.decodeForwardTo(target)
}
