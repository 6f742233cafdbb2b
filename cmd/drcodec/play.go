package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/output"
)

// PlayCmd decodes to the default audio device
type PlayCmd struct {
	File   string `arg:"" type:"existingfile" help:"Audio file"`
	Start  uint64 `help:"PCM frame to start from (FLAC only)"`
	Volume int    `default:"-1" help:"Volume 0-100 (defaults to the configured volume)"`
}

func (c *PlayCmd) Run(g *Globals) error {
	d, err := audio.Open(c.File, g.flacOptions(nil))
	if err != nil {
		return err
	}
	defer d.Close()

	if c.Start > 0 {
		fd, ok := d.(*audio.FLACDecoder)
		if !ok {
			return errors.New("--start needs a FLAC input")
		}
		if err := fd.Seek(int64(c.Start)); err != nil {
			return err
		}
	}

	player, err := output.NewPlayer(d.SampleRate(), d.NumChannels(), g.log)
	if err != nil {
		return err
	}
	defer player.Close()

	volume := g.settings.Volume
	if c.Volume >= 0 {
		volume = c.Volume
	}
	player.SetVolume(volume)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli.PrintInfo("Playing", c.File)
	frames, err := player.Play(ctx, d, nil)
	if errors.Is(err, context.Canceled) {
		cli.PrintWarning("playback interrupted")
		return nil
	}
	if err != nil {
		return err
	}
	cli.PrintSuccess(fmt.Sprintf("played %s", cli.FormatDuration(audioDuration(frames, d.SampleRate()))))
	return nil
}
