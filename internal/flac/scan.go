package flac

import (
	"errors"
	"fmt"
	"sort"
)

// frameIndexEntry records where one decoded frame starts.
type frameIndexEntry struct {
	first  uint64
	offset int64
	size   uint32
}

// scanFrames decodes every frame from the first one on and calls fn with
// each. It needs a seekable stream and leaves the decoder at the end.
func (d *Decoder) scanFrames(fn func(frameIndexEntry)) error {
	if d.br.rs == nil {
		return ErrNotSeekable
	}
	if err := d.rewind(); err != nil {
		return err
	}
	for {
		err := d.readFrame(scanRead)
		if errors.Is(err, ErrOutOfData) {
			return nil
		}
		if err != nil {
			return err
		}
		hdr := d.frame.Header
		fn(frameIndexEntry{first: hdr.FirstPCMFrame, offset: hdr.offset - d.anchor, size: hdr.BlockSize})
		d.frame.remaining = 0
	}
}

// restore returns to cursor after a scan, whatever the seek options say.
func (d *Decoder) restore(cursor uint64, scanErr error) error {
	if err := d.rewind(); err != nil {
		return errors.Join(scanErr, err)
	}
	if err := d.seek(cursor, DefaultSeekOptions()); err != nil {
		return errors.Join(scanErr, fmt.Errorf("flac: restore position %d: %w", cursor, err))
	}
	return scanErr
}

// CountPCMFrames decodes the whole stream and returns the number of PCM
// frames it holds, regardless of the STREAMINFO total. The read position is
// restored afterwards. This is slow.
func (d *Decoder) CountPCMFrames() (uint64, error) {
	if d.closed {
		return 0, ErrClosed
	}
	saved := d.cursor
	var count uint64
	err := d.scanFrames(func(e frameIndexEntry) {
		count += uint64(e.size)
	})
	if errors.Is(err, ErrNotSeekable) {
		return 0, err
	}
	if err := d.restore(saved, err); err != nil {
		return 0, err
	}
	return count, nil
}

// ComputeSeekPoints decodes the whole stream and returns up to count seek
// points, spaced evenly by PCM frame. Each point is the start of a frame
// that decoded cleanly. The read position is restored afterwards. This is
// slow.
func (d *Decoder) ComputeSeekPoints(count int) ([]SeekPoint, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if count <= 0 {
		return nil, nil
	}
	saved := d.cursor
	var frames []frameIndexEntry
	err := d.scanFrames(func(e frameIndexEntry) {
		frames = append(frames, e)
	})
	if errors.Is(err, ErrNotSeekable) {
		return nil, err
	}
	if err := d.restore(saved, err); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}

	last := frames[len(frames)-1]
	total := last.first + uint64(last.size)
	points := make([]SeekPoint, 0, count)
	for i := 0; i < count; i++ {
		at := total * uint64(i) / uint64(count)
		j := sort.Search(len(frames), func(k int) bool { return frames[k].first > at }) - 1
		if j < 0 {
			j = 0
		}
		f := frames[j]
		if n := len(points); n > 0 && points[n-1].FirstPCMFrame == f.first {
			continue
		}
		points = append(points, SeekPoint{
			FirstPCMFrame: f.first,
			ByteOffset:    uint64(f.offset),
			PCMFrameCount: uint16(f.size),
		})
	}
	return points, nil
}
