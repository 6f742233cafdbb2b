package main

import (
	"fmt"
	"path/filepath"

	"github.com/linuxmatters/drcodec/internal/audio"
	"github.com/linuxmatters/drcodec/internal/cli"
	"github.com/linuxmatters/drcodec/internal/renderer"
	"github.com/linuxmatters/drcodec/internal/ui"
)

// AnalyzeCmd reports levels and an averaged spectrum
type AnalyzeCmd struct {
	File  string `arg:"" type:"existingfile" help:"Audio file"`
	Width int    `default:"64" help:"Spectrum width in columns"`
	Image string `help:"Also render the spectrum to a PNG file" placeholder:"FILE"`
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	d, err := audio.Open(c.File, g.flacOptions(nil))
	if err != nil {
		return err
	}
	defer d.Close()

	profile, err := audio.Analyze(d, nil)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	cli.PrintSection(filepath.Base(c.File))
	cli.PrintInfo("Format", fmt.Sprintf("%d Hz, %d channels, %d bit", profile.SampleRate, profile.Channels, profile.BitDepth))
	cli.PrintInfo("Duration", cli.FormatDuration(profile.Duration))
	cli.PrintInfo("Peak", cli.FormatLevel(profile.PeakDBFS()))
	cli.PrintInfo("RMS", cli.FormatLevel(profile.RMSDBFS()))
	cli.PrintInfo("Dominant", fmt.Sprintf("%.1f Hz", profile.DominantHz))

	fmt.Println()
	fmt.Println(ui.RenderSpectrum(profile.Bars[:], max(c.Width, 8)))

	if c.Image != "" {
		r, err := renderer.NewSpectrum(0, 0)
		if err != nil {
			return err
		}
		caption := fmt.Sprintf("%s  %s peak  %.0f Hz", filepath.Base(c.File), cli.FormatLevel(profile.PeakDBFS()), profile.DominantHz)
		if err := renderer.SavePNG(r.Render(profile.Bars[:], caption), c.Image); err != nil {
			return fmt.Errorf("failed to save spectrum image: %w", err)
		}
		cli.PrintSuccess("Spectrum written to " + c.Image)
	}
	return nil
}
