package audio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"

	"github.com/linuxmatters/drcodec/internal/flac"
)

// AudioDecoder defines the interface for all audio format decoders
type AudioDecoder interface {
	// PCMBuffer fills buf.Data with interleaved integer samples at
	// BitDepth and returns how many samples it wrote. Only whole PCM
	// frames are written. Returns io.EOF once the stream is exhausted.
	PCMBuffer(buf *audio.IntBuffer) (int, error)

	// SampleRate returns the audio sample rate in Hz
	SampleRate() int

	// NumSamples returns the number of samples per channel
	// Returns 0 if the length is unknown (e.g., streaming)
	NumSamples() int64

	// NumChannels returns the number of audio channels (1=mono, 2=stereo)
	NumChannels() int

	// BitDepth returns the width of the integer samples PCMBuffer produces
	BitDepth() int

	// Close closes the decoder and releases resources
	Close() error
}

// Open picks a decoder from the file extension. opts only applies to FLAC.
func Open(filename string, opts *flac.Options) (AudioDecoder, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".flac":
		return NewFLACDecoder(filename, opts)
	case ".mp3":
		return NewMP3Decoder(filename)
	case ".wav", ".wave":
		return NewWAVDecoder(filename)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
}

// NewBuffer allocates an IntBuffer that holds frames PCM frames of d.
func NewBuffer(d AudioDecoder, frames int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Data: make([]int, frames*d.NumChannels()),
		Format: &audio.Format{
			NumChannels: d.NumChannels(),
			SampleRate:  d.SampleRate(),
		},
		SourceBitDepth: d.BitDepth(),
	}
}

// ReadChunk reads up to numFrames PCM frames and downmixes them to mono
// float64 in [-1.0, 1.0). Returns io.EOF when nothing is left.
func ReadChunk(d AudioDecoder, numFrames int) ([]float64, error) {
	buf := NewBuffer(d, numFrames)
	n, err := d.PCMBuffer(buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	chans := d.NumChannels()
	maxVal := float64(int64(1) << (d.BitDepth() - 1))
	samples := make([]float64, n/chans)
	for i := range samples {
		var sum int64
		for c := 0; c < chans; c++ {
			sum += int64(buf.Data[i*chans+c])
		}
		samples[i] = float64(sum) / float64(chans) / maxVal
	}
	if err == io.EOF {
		err = nil
	}
	return samples, err
}
