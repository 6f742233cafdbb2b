package audio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVWriter writes interleaved integer PCM to a WAV file
type WAVWriter struct {
	encoder  *wav.Encoder
	file     *os.File
	bitDepth int
	scratch  *audio.IntBuffer
}

// NewWAVWriter creates filename and prepares it for PCM at the given format
func NewWAVWriter(filename string, sampleRate, bitDepth, numChans int) (*WAVWriter, error) {
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &WAVWriter{
		encoder:  wav.NewEncoder(f, sampleRate, bitDepth, numChans, 1),
		file:     f,
		bitDepth: bitDepth,
	}, nil
}

// Write appends the samples in buf
func (w *WAVWriter) Write(buf *audio.IntBuffer) error {
	if w.bitDepth == 8 {
		buf = w.unsigned(buf)
	}
	if err := w.encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// unsigned offsets signed 8-bit samples into WAV's unsigned range.
func (w *WAVWriter) unsigned(buf *audio.IntBuffer) *audio.IntBuffer {
	if w.scratch == nil || cap(w.scratch.Data) < len(buf.Data) {
		w.scratch = &audio.IntBuffer{Data: make([]int, len(buf.Data))}
	}
	w.scratch.Format = buf.Format
	w.scratch.SourceBitDepth = buf.SourceBitDepth
	w.scratch.Data = w.scratch.Data[:len(buf.Data)]
	for i, s := range buf.Data {
		w.scratch.Data[i] = s + 128
	}
	return w.scratch
}

// Close finalises the WAV header and closes the file
func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	return w.file.Close()
}

// ProgressFunc receives the number of PCM frames copied so far
type ProgressFunc func(frames int64)

// Transcode copies every sample of d into w, chunkFrames PCM frames at a
// time, and returns the number of PCM frames copied. It stops early if ctx
// is cancelled.
func Transcode(ctx context.Context, d AudioDecoder, w *WAVWriter, chunkFrames int, progress ProgressFunc) (int64, error) {
	buf := NewBuffer(d, chunkFrames)
	chans := d.NumChannels()
	full := buf.Data
	var frames int64
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		buf.Data = full
		n, err := d.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return frames, err
		}
		if n == 0 {
			return frames, nil
		}
		buf.Data = full[:n]
		if err := w.Write(buf); err != nil {
			return frames, err
		}
		frames += int64(n / chans)
		if progress != nil {
			progress(frames)
		}
	}
}
