package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/linuxmatters/drcodec/internal/config"
)

// Profile holds level and spectrum statistics for a whole stream
type Profile struct {
	SampleRate int
	Channels   int
	BitDepth   int

	// Frames is the number of PCM frames analysed
	Frames   int64
	Duration float64 // Seconds

	// Levels of the mono downmix, linear in [0, 1]
	Peak float64
	RMS  float64

	// DominantHz is the strongest frequency of the averaged spectrum
	DominantHz float64

	// Bars is the averaged spectrum folded into NumBars bands
	Bars [config.NumBars]float64
}

// PeakDBFS returns the peak level in dB relative to full scale
func (p *Profile) PeakDBFS() float64 {
	return dBFS(p.Peak)
}

// RMSDBFS returns the RMS level in dB relative to full scale
func (p *Profile) RMSDBFS() float64 {
	return dBFS(p.RMS)
}

func dBFS(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

// Analyze reads d to the end in FFTSize windows and collects statistics.
// progress, if not nil, is called after each window.
func Analyze(d AudioDecoder, progress ProgressFunc) (*Profile, error) {
	profile := &Profile{
		SampleRate: d.SampleRate(),
		Channels:   d.NumChannels(),
		BitDepth:   d.BitDepth(),
	}

	sum := make([]float64, config.FFTSize/2)
	var sumSquares float64
	windows := 0
	for {
		chunk, err := ReadChunk(d, config.FFTSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading audio at frame %d: %w", profile.Frames, err)
		}

		for _, s := range chunk {
			profile.Peak = max(profile.Peak, math.Abs(s))
			sumSquares += s * s
		}
		profile.Frames += int64(len(chunk))

		mags, err := Spectrum(chunk)
		if err != nil {
			return nil, err
		}
		for i, m := range mags {
			sum[i] += m
		}
		windows++

		if progress != nil {
			progress(profile.Frames)
		}
	}

	if profile.Frames == 0 {
		return nil, fmt.Errorf("no audio data in file")
	}

	profile.RMS = math.Sqrt(sumSquares / float64(profile.Frames))
	profile.Duration = float64(profile.Frames) / float64(profile.SampleRate)
	for i := range sum {
		sum[i] /= float64(windows)
	}
	profile.DominantHz = PeakFrequency(sum, profile.SampleRate)
	BinSpectrum(sum, profile.Bars[:])

	return profile, nil
}
