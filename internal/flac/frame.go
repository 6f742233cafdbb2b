package flac

import "fmt"

// Frame is the most recently decoded frame. Its sample storage belongs to
// the Decoder and is overwritten by the next decode.
type Frame struct {
	Header    FrameHeader
	Subframes []Subframe

	// remaining counts the PCM frames not yet handed out.
	remaining uint32
}

// decodeFrame decodes the subframes and footer that follow hdr. On failure
// the frame holds no samples.
func decodeFrame(br *bitReader, hdr FrameHeader, f *Frame) error {
	f.Header = hdr
	f.remaining = 0

	n := hdr.Channels.Count()
	if cap(f.Subframes) < n {
		sub := make([]Subframe, n)
		copy(sub, f.Subframes)
		f.Subframes = sub
	}
	f.Subframes = f.Subframes[:n]

	side := hdr.Channels.sideChannel()
	for ch := range f.Subframes {
		bps := uint(hdr.BitsPerSample)
		if ch == side {
			bps++
			if bps > 32 {
				return invalidData("%d bit side channel exceeds sample storage", bps)
			}
		}
		if err := decodeSubframe(br, &f.Subframes[ch], int(hdr.BlockSize), bps); err != nil {
			return fmt.Errorf("subframe %d: %w", ch, err)
		}
	}

	if err := br.alignToByte(); err != nil {
		return err
	}
	want := br.crc16
	got, err := br.readBits(16)
	if err != nil {
		return err
	}
	if uint16(got) != want {
		return fmt.Errorf("%w: frame at byte %d has 0x%04X, want 0x%04X", ErrCRCMismatch, hdr.offset, got, want)
	}

	if !hdr.Channels.Independent() {
		decorrelate(hdr.Channels, f.Subframes[0].Samples, f.Subframes[1].Samples)
	}
	f.remaining = hdr.BlockSize
	return nil
}

// decorrelate rebuilds left and right in place from a stereo pair.
func decorrelate(ch ChannelAssignment, s0, s1 []int32) {
	switch ch {
	case LeftSide:
		for i, left := range s0 {
			s1[i] = left - s1[i]
		}
	case RightSide:
		for i, side := range s0 {
			s0[i] = side + s1[i]
		}
	case MidSide:
		for i := range s0 {
			side := int64(s1[i])
			mid := int64(s0[i])<<1 | side&1
			s0[i] = int32((mid + side) >> 1)
			s1[i] = int32((mid - side) >> 1)
		}
	}
}

// position returns the index within the frame of the next PCM frame to emit.
func (f *Frame) position() uint32 {
	return f.Header.BlockSize - f.remaining
}
