package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/flac"
)

// SeekCmd positions a FLAC stream and prints what it finds there
type SeekCmd struct {
	File     string `arg:"" type:"existingfile" help:"FLAC file"`
	Frame    uint64 `arg:"" help:"PCM frame to seek to"`
	Strategy string `enum:"auto,table,binary,brute" default:"auto" help:"Seek strategy (${enum})"`
	Count    int    `default:"8" help:"Number of PCM frames to print"`
}

func (c *SeekCmd) options() *flac.SeekOptions {
	switch c.Strategy {
	case "table":
		return &flac.SeekOptions{AllowSeekTable: true}
	case "binary":
		return &flac.SeekOptions{AllowBinarySearch: true}
	case "brute":
		return &flac.SeekOptions{AllowBruteForce: true}
	}
	return nil
}

func (c *SeekCmd) Run(g *Globals) error {
	d, err := flac.OpenFile(c.File, g.flacOptions(c.options()))
	if err != nil {
		return fmt.Errorf("failed to open FLAC: %w", err)
	}
	defer d.Close()

	if err := d.SeekToPCMFrame(c.Frame); err != nil {
		return fmt.Errorf("seek to frame %d failed: %w", c.Frame, err)
	}

	cli.PrintSection(fmt.Sprintf("Frame %d", d.CurrentPCMFrame()))
	count := max(c.Count, 1)
	samples := make([]int32, count*d.Channels())
	n, err := d.ReadPCMFramesS32(uint64(count), samples)
	if errors.Is(err, io.EOF) {
		cli.PrintWarning("end of stream")
		return nil
	}
	if err != nil {
		return err
	}

	hdr := d.CurrentFrame()
	cli.PrintInfo("Frame header", fmt.Sprintf("byte %d, first frame %d, block %d, %s",
		hdr.Offset(), hdr.FirstPCMFrame, hdr.BlockSize, hdr.Channels))

	ch := d.Channels()
	for i := range int(n) {
		var row strings.Builder
		for j := range ch {
			fmt.Fprintf(&row, "%8d", samples[i*ch+j])
		}
		cli.PrintInfo(fmt.Sprintf("%d", c.Frame+uint64(i)), row.String())
	}
	return nil
}

// SeekpointsCmd computes seek points by decoding a FLAC file
type SeekpointsCmd struct {
	File  string `arg:"" type:"existingfile" help:"FLAC file"`
	Count int    `default:"${seekpoints}" help:"Number of seek points"`
}

func (c *SeekpointsCmd) Run(g *Globals) error {
	d, err := flac.OpenFile(c.File, g.flacOptions(nil))
	if err != nil {
		return fmt.Errorf("failed to open FLAC: %w", err)
	}
	defer d.Close()

	points, err := d.ComputeSeekPoints(c.Count)
	if err != nil {
		return fmt.Errorf("failed to compute seek points: %w", err)
	}

	cli.PrintSection(fmt.Sprintf("%d seek points", len(points)))
	if existing := d.SeekTable(); len(existing) > 0 {
		cli.PrintInfo("Embedded table", fmt.Sprintf("%d points", len(existing)))
	}
	for _, p := range points {
		cli.PrintInfo(fmt.Sprintf("%12d", p.FirstPCMFrame),
			fmt.Sprintf("byte %-10d %d frames", p.ByteOffset, p.PCMFrameCount))
	}
	return nil
}
