package main

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/flac"
)

// VerifyCmd cross-checks the native decoder
type VerifyCmd struct {
	File string `arg:"" type:"existingfile" help:"FLAC file"`
}

func (c *VerifyCmd) Run(g *Globals) error {
	native, err := audio.NewFLACDecoder(c.File, g.flacOptions(nil))
	if err != nil {
		return err
	}
	defer native.Close()

	reference, err := audio.NewReferenceFLACDecoder(c.File)
	if err != nil {
		return err
	}
	defer reference.Close()

	cli.PrintSection("Verifying " + c.File)
	frames, err := compareDecoders(native, reference, g.settings.ChunkFrames)
	if err != nil {
		return err
	}
	cli.PrintSuccess(fmt.Sprintf("%d PCM frames match the reference decoder", frames))

	checker, err := flac.OpenFile(c.File, g.flacOptions(nil))
	if err != nil {
		return err
	}
	defer checker.Close()

	err = checker.VerifyMD5()
	switch {
	case errors.Is(err, flac.ErrNoChecksum):
		cli.PrintWarning("stream has no MD5 signature")
	case err != nil:
		return err
	default:
		cli.PrintSuccess("MD5 signature matches")
	}
	return nil
}

// compareDecoders reads both decoders to the end and reports the first
// sample where they differ.
func compareDecoders(a, b audio.AudioDecoder, chunkFrames int) (int64, error) {
	if a.NumChannels() != b.NumChannels() {
		return 0, fmt.Errorf("channel count differs: %d vs %d", a.NumChannels(), b.NumChannels())
	}
	chans := a.NumChannels()
	bufA := audio.NewBuffer(a, chunkFrames)
	bufB := audio.NewBuffer(b, chunkFrames)

	var frames int64
	for {
		na, errA := fill(a, bufA)
		nb, errB := fill(b, bufB)
		if errA != nil {
			return frames, fmt.Errorf("native decoder: %w", errA)
		}
		if errB != nil {
			return frames, fmt.Errorf("reference decoder: %w", errB)
		}
		for i := range min(na, nb) {
			if bufA.Data[i] != bufB.Data[i] {
				at := frames + int64(i/chans)
				return frames, fmt.Errorf("sample mismatch at frame %d channel %d: %d vs %d",
					at, i%chans, bufA.Data[i], bufB.Data[i])
			}
		}
		if na != nb {
			return frames, fmt.Errorf("length differs after frame %d", frames+int64(min(na, nb)/chans))
		}
		if na == 0 {
			return frames, nil
		}
		frames += int64(na / chans)
	}
}

// fill reads until buf is full or the decoder is exhausted.
func fill(d audio.AudioDecoder, buf *goaudio.IntBuffer) (int, error) {
	full := buf.Data
	defer func() { buf.Data = full }()

	count := 0
	for count < len(full) {
		buf.Data = full[count:]
		n, err := d.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return count, err
		}
		if n == 0 {
			break
		}
		count += n
	}
	return count, nil
}

