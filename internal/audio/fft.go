package audio

import (
	"fmt"
	"math"

	"github.com/argusdusty/gofft"

	"github.com/linuxmatters/drcodec/internal/config"
)

// ApplyHanning applies a Hanning window to the input data
func ApplyHanning(data []float64) []float64 {
	windowed := make([]float64, len(data))
	n := len(data)
	if n < 2 {
		copy(windowed, data)
		return windowed
	}
	for i := range data {
		window := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = data[i] * window
	}
	return windowed
}

// Spectrum windows one FFTSize block of mono samples and returns the
// magnitudes of its positive-frequency bins. Short input is zero padded.
func Spectrum(samples []float64) ([]float64, error) {
	chunk := make([]float64, config.FFTSize)
	copy(chunk, samples)

	coeffs := gofft.Float64ToComplex128Array(ApplyHanning(chunk))
	if err := gofft.FFT(coeffs); err != nil {
		return nil, fmt.Errorf("failed to compute FFT: %w", err)
	}

	mags := make([]float64, config.FFTSize/2)
	for i := range mags {
		c := coeffs[i]
		mags[i] = math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
	}
	return mags, nil
}

// BinSpectrum averages magnitudes into len(bars) equal-width bars
func BinSpectrum(mags []float64, bars []float64) {
	if len(bars) == 0 {
		return
	}
	binsPerBar := len(mags) / len(bars)
	if binsPerBar == 0 {
		binsPerBar = 1
	}
	for bar := range bars {
		start := bar * binsPerBar
		end := min(start+binsPerBar, len(mags))
		var sum float64
		for i := start; i < end; i++ {
			sum += mags[i]
		}
		if end > start {
			bars[bar] = sum / float64(end-start)
		} else {
			bars[bar] = 0
		}
	}
}

// PeakFrequency returns the centre frequency in Hz of the strongest bin,
// ignoring DC.
func PeakFrequency(mags []float64, sampleRate int) float64 {
	best := 0
	for i := 1; i < len(mags); i++ {
		if mags[i] > mags[best] || best == 0 {
			best = i
		}
	}
	return float64(best) * float64(sampleRate) / float64(config.FFTSize)
}
