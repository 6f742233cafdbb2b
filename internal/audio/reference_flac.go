package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/mewkiz/flac"
)

// ReferenceFLACDecoder implements AudioDecoder with github.com/mewkiz/flac.
// It is used to cross-check the native decoder.
type ReferenceFLACDecoder struct {
	stream  *flac.Stream
	file    *os.File
	pending [][]int32 // undelivered samples of the last frame, per channel
	offset  int
}

// NewReferenceFLACDecoder creates a new reference FLAC decoder
func NewReferenceFLACDecoder(filename string) (*ReferenceFLACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}

	return &ReferenceFLACDecoder{stream: stream, file: f}, nil
}

// PCMBuffer fills buf with interleaved samples
func (d *ReferenceFLACDecoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	chans := d.NumChannels()
	frames := len(buf.Data) / chans
	written := 0
	for written < frames {
		if d.pending == nil || d.offset == len(d.pending[0]) {
			frame, err := d.stream.ParseNext()
			if err == io.EOF {
				break
			}
			if err != nil {
				return 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
			}
			d.pending = d.pending[:0]
			for _, sf := range frame.Subframes {
				d.pending = append(d.pending, sf.Samples)
			}
			d.offset = 0
		}

		n := min(frames-written, len(d.pending[0])-d.offset)
		for i := 0; i < n; i++ {
			for c, samples := range d.pending {
				buf.Data[(written+i)*chans+c] = int(samples[d.offset+i])
			}
		}
		d.offset += n
		written += n
	}

	if written == 0 {
		return 0, io.EOF
	}
	return written * chans, nil
}

// SampleRate returns the sample rate
func (d *ReferenceFLACDecoder) SampleRate() int {
	return int(d.stream.Info.SampleRate)
}

// NumSamples returns the total number of samples per channel
func (d *ReferenceFLACDecoder) NumSamples() int64 {
	return int64(d.stream.Info.NSamples)
}

// NumChannels returns the number of audio channels
func (d *ReferenceFLACDecoder) NumChannels() int {
	return int(d.stream.Info.NChannels)
}

// BitDepth returns the bits per sample
func (d *ReferenceFLACDecoder) BitDepth() int {
	return int(d.stream.Info.BitsPerSample)
}

// Close closes the decoder and releases resources
func (d *ReferenceFLACDecoder) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	// The stream may already have closed the file.
	if d.file != nil {
		if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
	}
	return nil
}
