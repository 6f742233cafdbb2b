package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs interleaved 16-bit stereo: L0 R0 L1 R1 ...
const (
	mp3Channels   = 2
	mp3FrameBytes = 4
)

// MP3Decoder implements AudioDecoder for MP3 files
type MP3Decoder struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	raw        []byte
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	return &MP3Decoder{
		decoder:    decoder,
		file:       f,
		sampleRate: decoder.SampleRate(),
	}, nil
}

// PCMBuffer fills buf with interleaved 16-bit samples
func (d *MP3Decoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	frames := len(buf.Data) / mp3Channels
	if cap(d.raw) < frames*mp3FrameBytes {
		d.raw = make([]byte, frames*mp3FrameBytes)
	}
	raw := d.raw[:frames*mp3FrameBytes]

	n, err := io.ReadFull(d.decoder, raw)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("failed to read MP3 data: %w", err)
	}
	n -= n % mp3FrameBytes
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n/2; i++ {
		buf.Data[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return n / 2, nil
}

// SampleRate returns the sample rate
func (d *MP3Decoder) SampleRate() int {
	return d.sampleRate
}

// NumSamples returns the number of samples per channel
func (d *MP3Decoder) NumSamples() int64 {
	if l := d.decoder.Length(); l > 0 {
		return l / mp3FrameBytes
	}
	return 0
}

// NumChannels returns the number of audio channels
func (d *MP3Decoder) NumChannels() int {
	return mp3Channels
}

// BitDepth returns the bits per sample
func (d *MP3Decoder) BitDepth() int {
	return 16
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
