package audio

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"

	"github.com/linuxmatters/drcodec/internal/flac"
)

// FLACDecoder implements AudioDecoder for FLAC files using the native
// decoder in internal/flac
type FLACDecoder struct {
	stream  *flac.Decoder
	scratch []int32
}

// NewFLACDecoder creates a new FLAC decoder
func NewFLACDecoder(filename string, opts *flac.Options) (*FLACDecoder, error) {
	stream, err := flac.OpenFile(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}
	return &FLACDecoder{stream: stream}, nil
}

// PCMBuffer fills buf with interleaved samples
func (d *FLACDecoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	chans := d.stream.Channels()
	frames := len(buf.Data) / chans
	if cap(d.scratch) < frames*chans {
		d.scratch = make([]int32, frames*chans)
	}
	scratch := d.scratch[:frames*chans]

	n, err := d.stream.ReadPCMFramesS32(uint64(frames), scratch)
	if err == io.EOF {
		return 0, io.EOF
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decode FLAC frame: %w", err)
	}
	count := int(n) * chans
	for i, s := range scratch[:count] {
		buf.Data[i] = int(s)
	}
	return count, nil
}

// Seek moves to the given PCM frame
func (d *FLACDecoder) Seek(frame int64) error {
	if err := d.stream.SeekToPCMFrame(uint64(frame)); err != nil {
		return fmt.Errorf("failed to seek to frame %d: %w", frame, err)
	}
	return nil
}

// Stream exposes the underlying decoder
func (d *FLACDecoder) Stream() *flac.Decoder {
	return d.stream
}

// SampleRate returns the sample rate
func (d *FLACDecoder) SampleRate() int {
	return d.stream.SampleRate()
}

// NumSamples returns the total number of samples per channel
func (d *FLACDecoder) NumSamples() int64 {
	return int64(d.stream.TotalPCMFrames())
}

// NumChannels returns the number of audio channels
func (d *FLACDecoder) NumChannels() int {
	return d.stream.Channels()
}

// BitDepth returns the bits per sample
func (d *FLACDecoder) BitDepth() int {
	return d.stream.BitsPerSample()
}

// Close closes the decoder and releases resources
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
