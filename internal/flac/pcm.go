package flac

import (
	"errors"
	"io"
)

// ReadPCMFramesS32 reads up to n PCM frames of interleaved samples at their
// native values. out must hold n*Channels() samples; a nil out skips the
// frames instead.
//
// The count is below n only at the end of the stream, where (0, io.EOF) is
// returned once nothing is left. A decode failure after some frames were
// produced is reported by the next call.
func (d *Decoder) ReadPCMFramesS32(n uint64, out []int32) (uint64, error) {
	return readPCMFrames(d, n, out, func(s int32) int32 { return s })
}

// ReadPCMFramesS16 is ReadPCMFramesS32 with samples above 16 bits shifted
// down to 16.
func (d *Decoder) ReadPCMFramesS16(n uint64, out []int16) (uint64, error) {
	shift := uint(0)
	if bps := uint(d.info.BitsPerSample); bps > 16 {
		shift = bps - 16
	}
	return readPCMFrames(d, n, out, func(s int32) int16 { return int16(s >> shift) })
}

// ReadPCMFramesF32 is ReadPCMFramesS32 with samples scaled into [-1, 1).
func (d *Decoder) ReadPCMFramesF32(n uint64, out []float32) (uint64, error) {
	scale := 1 / float64(uint64(1)<<(d.info.BitsPerSample-1))
	return readPCMFrames(d, n, out, func(s int32) float32 { return float32(float64(s) * scale) })
}

func readPCMFrames[T any](d *Decoder, n uint64, out []T, convert func(int32) T) (uint64, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if n == 0 {
		return 0, nil
	}
	ch := uint64(d.info.Channels)
	if out != nil && uint64(len(out)) < n*ch {
		return 0, io.ErrShortBuffer
	}
	if err := d.pendingErr; err != nil {
		d.pendingErr = nil
		return 0, err
	}

	var done uint64
	for done < n {
		total := d.info.TotalPCMFrames
		if total > 0 && d.cursor >= total {
			d.frame.remaining = 0
			break
		}
		if d.frame.remaining == 0 {
			if d.atEnd {
				break
			}
			if err := d.readFrame(scanRead); err != nil {
				if errors.Is(err, ErrOutOfData) {
					d.atEnd = true
					break
				}
				if done > 0 {
					d.pendingErr = err
					return done, nil
				}
				return 0, err
			}
			// The cursor may have moved past skipped frames
			continue
		}

		take := min(uint64(d.frame.remaining), n-done)
		if total > 0 {
			take = min(take, total-d.cursor)
		}
		if out != nil {
			interleave(out[done*ch:], &d.frame, int(take), convert)
		}
		d.frame.remaining -= uint32(take)
		d.cursor += take
		done += take
	}

	if done == 0 {
		return 0, io.EOF
	}
	return done, nil
}

// interleave copies count PCM frames from the current position of f.
func interleave[T any](out []T, f *Frame, count int, convert func(int32) T) {
	pos := int(f.position())
	ch := len(f.Subframes)
	for c := range f.Subframes {
		src := f.Subframes[c].Samples[pos : pos+count]
		for i, s := range src {
			out[i*ch+c] = convert(s)
		}
	}
}
