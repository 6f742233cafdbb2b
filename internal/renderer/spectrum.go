package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/linuxmatters/drcodec/internal/config"
)

// Spectrum renders bar heights as a mirrored bar graph with a caption
type Spectrum struct {
	width, height int
	font          *truetype.Font

	// Pre-computed bar colours, indexed by distance from the centre line
	shade []color.RGBA
}

// NewSpectrum creates a renderer for images of the given size. A zero
// width or height uses the default image size.
func NewSpectrum(width, height int) (*Spectrum, error) {
	if width <= 0 {
		width = config.ImageWidth
	}
	if height <= 0 {
		height = config.ImageHeight
	}

	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	// Bars fade from full colour at the centre to half at the tips
	half := height * config.Supersample / 2
	shade := make([]color.RGBA, half)
	for i := range shade {
		factor := 1.0 - 0.5*float64(i)/float64(half)
		shade[i] = color.RGBA{
			R: uint8(float64(config.BarColorR) * factor),
			G: uint8(float64(config.BarColorG) * factor),
			B: uint8(float64(config.BarColorB) * factor),
			A: 255,
		}
	}

	return &Spectrum{width: width, height: height, font: parsed, shade: shade}, nil
}

// Render draws bars, scaled so the largest fills the height, with caption
// across the top and returns the image at the renderer's size.
func (s *Spectrum) Render(bars []float64, caption string) *image.RGBA {
	w := s.width * config.Supersample
	h := s.height * config.Supersample
	big := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(big, big.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)

	s.drawBars(big, bars)
	if caption != "" {
		s.drawCaption(big, caption)
	}

	out := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.BiLinear.Scale(out, out.Bounds(), big, big.Bounds(), draw.Src, nil)
	return out
}

func (s *Spectrum) drawBars(img *image.RGBA, bars []float64) {
	if len(bars) == 0 {
		return
	}
	b := img.Bounds()
	margin := config.ImageMargin * config.Supersample
	gap := config.BarGap * config.Supersample
	usable := b.Dx() - 2*margin
	barWidth := max(1, (usable-(len(bars)-1)*gap)/len(bars))
	startX := margin + (usable-(len(bars)*barWidth+(len(bars)-1)*gap))/2
	centerY := b.Dy() / 2
	maxHeight := min(centerY-margin, len(s.shade))

	peak := 0.0
	for _, v := range bars {
		peak = max(peak, v)
	}
	if peak == 0 {
		return
	}

	for i, v := range bars {
		height := int(math.Round(max(0, v/peak) * float64(maxHeight)))
		x0 := startX + i*(barWidth+gap)
		for dy := 0; dy < height; dy++ {
			c := s.shade[dy]
			for x := x0; x < x0+barWidth; x++ {
				img.SetRGBA(x, centerY-dy-1, c)
				img.SetRGBA(x, centerY+dy, c)
			}
		}
	}
}

func (s *Spectrum) drawCaption(img *image.RGBA, caption string) {
	size := float64(img.Bounds().Dy()) / 24
	face := truetype.NewFace(s.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: config.TextColorR, G: config.TextColorG, B: config.TextColorB, A: 255}),
		Face: face,
	}

	width, bounds := measureText(face, caption)
	x := (img.Bounds().Dx() - width) / 2
	y := config.ImageMargin*config.Supersample/2 - bounds.Min.Y.Ceil()
	d.Dot = freetype.Pt(max(0, x), y)
	d.DrawString(caption)
}

// measureText returns the width and bounds of rendered text
func measureText(face font.Face, text string) (int, fixed.Rectangle26_6) {
	d := &font.Drawer{Face: face}
	bounds, _ := d.BoundString(text)
	return (bounds.Max.X - bounds.Min.X).Ceil(), bounds
}

// SavePNG writes img to a PNG file
func SavePNG(img image.Image, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return f.Close()
}
