package flac

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
)

// md5ChunkFrames is how many PCM frames VerifyMD5 decodes per read.
const md5ChunkFrames = 4096

// VerifyMD5 decodes the whole stream and compares the MD5 of its samples
// with the STREAMINFO signature. Samples are hashed as little-endian
// integers of the smallest whole byte width that holds BitsPerSample. The
// read position is restored afterwards.
func (d *Decoder) VerifyMD5() error {
	if d.closed {
		return ErrClosed
	}
	if d.info.MD5 == [16]byte{} {
		return ErrNoChecksum
	}
	if d.br.rs == nil {
		return ErrNotSeekable
	}

	saved := d.cursor
	if err := d.rewind(); err != nil {
		return err
	}
	sum, err := d.hashSamples()
	if err := d.restore(saved, err); err != nil {
		return err
	}
	if sum != d.info.MD5 {
		return fmt.Errorf("%w: got %x, want %x", ErrChecksumMismatch, sum, d.info.MD5)
	}
	return nil
}

func (d *Decoder) hashSamples() ([16]byte, error) {
	h := md5.New()
	width := (int(d.info.BitsPerSample) + 7) / 8
	ch := int(d.info.Channels)
	samples := make([]int32, md5ChunkFrames*ch)
	buf := make([]byte, len(samples)*width)
	for {
		n, err := d.ReadPCMFramesS32(md5ChunkFrames, samples)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return [16]byte{}, err
		}
		b := buf[:0]
		for _, s := range samples[:int(n)*ch] {
			for i := 0; i < width; i++ {
				b = append(b, byte(s>>(8*i)))
			}
		}
		h.Write(b)
	}
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
