package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/flac"
)

// InfoCmd prints stream details
type InfoCmd struct {
	File string `arg:"" type:"existingfile" help:"Audio file"`
}

func (c *InfoCmd) Run(g *Globals) error {
	if strings.EqualFold(filepath.Ext(c.File), ".flac") {
		return c.flacInfo(g)
	}

	d, err := audio.Open(c.File, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	cli.PrintSection(filepath.Base(c.File))
	printFormat(d.SampleRate(), d.NumChannels(), d.BitDepth(), d.NumSamples())
	return nil
}

func (c *InfoCmd) flacInfo(g *Globals) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	var blocks []flac.Metadata
	d, err := flac.OpenWithMetadata(f, func(m flac.Metadata) {
		blocks = append(blocks, m)
	}, g.flacOptions(nil))
	if err != nil {
		return fmt.Errorf("failed to open FLAC: %w", err)
	}
	defer d.Close()

	info := d.Info()
	cli.PrintSection(filepath.Base(c.File))
	printFormat(d.SampleRate(), d.Channels(), d.BitsPerSample(), int64(d.TotalPCMFrames()))
	cli.PrintInfo("Block size", fmt.Sprintf("%d-%d", info.MinBlockSize, info.MaxBlockSize))
	if info.MaxFrameSize > 0 {
		cli.PrintInfo("Frame size", fmt.Sprintf("%d-%d bytes", info.MinFrameSize, info.MaxFrameSize))
	}
	cli.PrintInfo("MD5", fmt.Sprintf("%x", info.MD5))
	cli.PrintInfo("First frame", fmt.Sprintf("byte %d", d.FirstFrameOffset()))

	cli.PrintSection("Metadata")
	for _, m := range blocks {
		cli.PrintInfo(fmt.Sprintf("%-14s", m.Type), fmt.Sprintf("%d bytes  %s", m.Length, describeBlock(m)))
	}
	return nil
}

func printFormat(rate, chans, bits int, frames int64) {
	cli.PrintInfo("Sample rate", fmt.Sprintf("%d Hz", rate))
	cli.PrintInfo("Channels", fmt.Sprintf("%d", chans))
	cli.PrintInfo("Bit depth", fmt.Sprintf("%d", bits))
	if frames > 0 && rate > 0 {
		duration := audioDuration(frames, rate)
		cli.PrintInfo("Length", fmt.Sprintf("%d frames (%s)", frames, duration.Round(time.Millisecond)))
	} else {
		cli.PrintInfo("Length", "unknown")
	}
}

// audioDuration converts a PCM frame count at rate into playing time.
func audioDuration(frames int64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func describeBlock(m flac.Metadata) string {
	switch b := m.Body.(type) {
	case *flac.StreamInfo:
		return fmt.Sprintf("%d Hz, %d channels", b.SampleRate, b.Channels)
	case *flac.Padding:
		return ""
	case *flac.Application:
		return fmt.Sprintf("id %q", string([]byte{byte(b.ID >> 24), byte(b.ID >> 16), byte(b.ID >> 8), byte(b.ID)}))
	case *flac.SeekTable:
		return fmt.Sprintf("%d points", len(b.Points))
	case *flac.VorbisComment:
		var s strings.Builder
		fmt.Fprintf(&s, "vendor %q", b.Vendor)
		for _, c := range b.Comments {
			fmt.Fprintf(&s, "\n    %s", c)
		}
		return s.String()
	case *flac.CueSheet:
		return fmt.Sprintf("%d tracks, catalog %q", len(b.Tracks), b.Catalog)
	case *flac.Picture:
		return fmt.Sprintf("%s %dx%d, %d bytes", b.MIME, b.Width, b.Height, len(b.Data))
	default:
		return "unrecognised"
	}
}
