package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/ui"
)

// DecodeCmd converts any supported input to WAV
type DecodeCmd struct {
	Input      string `arg:"" type:"existingfile" help:"Input FLAC, MP3 or WAV file"`
	Output     string `arg:"" help:"Output WAV file"`
	NoProgress bool   `help:"Disable the progress display"`
}

func (c *DecodeCmd) Run(g *Globals) error {
	src, err := audio.Open(c.Input, g.flacOptions(nil))
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := audio.NewWAVWriter(c.Output, src.SampleRate(), src.BitDepth(), src.NumChannels())
	if err != nil {
		return err
	}

	start := time.Now()
	var frames int64
	if c.NoProgress {
		frames, err = audio.Transcode(context.Background(), src, w, g.settings.ChunkFrames, nil)
	} else {
		frames, err = c.withProgress(g, src, w)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.Input, err)
	}

	if c.NoProgress {
		elapsed := time.Since(start)
		var size int64
		if st, err := os.Stat(c.Output); err == nil {
			size = st.Size()
		}
		audioLen := audioDuration(frames, src.SampleRate())
		cli.PrintDecodeSummary(
			c.Output,
			cli.FormatDuration(audioLen),
			cli.FormatSpeed(float64(audioLen)/float64(max(elapsed, time.Millisecond))),
			cli.FormatBytes(size),
			fmt.Sprintf("%d", frames),
		)
	}
	return nil
}

// withProgress runs the transcode in a goroutine feeding the progress UI.
func (c *DecodeCmd) withProgress(g *Globals, src audio.AudioDecoder, w *audio.WAVWriter) (int64, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := ui.NewModel(c.Input)
	p := tea.NewProgram(model)

	type result struct {
		frames int64
		err    error
	}
	done := make(chan result, 1)

	go func() {
		start := time.Now()
		var last time.Time
		frames, err := audio.Transcode(ctx, src, w, g.settings.ChunkFrames, func(n int64) {
			// Throttle updates to keep the UI responsive
			if time.Since(last) < 50*time.Millisecond {
				return
			}
			last = time.Now()
			p.Send(ui.DecodeProgress{
				Frames:      n,
				TotalFrames: src.NumSamples(),
				SampleRate:  src.SampleRate(),
				Elapsed:     time.Since(start),
			})
		})
		done <- result{frames, err}

		var size int64
		if st, serr := os.Stat(c.Output); serr == nil {
			size = st.Size()
		}
		p.Send(ui.DecodeComplete{
			Input:    c.Input,
			Output:   c.Output,
			Frames:   frames,
			FileSize: size,
			Elapsed:  time.Since(start),
			Err:      err,
		})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return 0, fmt.Errorf("progress display failed: %w", err)
	}
	if model.Cancelled() {
		cancel()
	}
	r := <-done
	return r.frames, r.err
}
