package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/himanishpuri/NoteGram/internal/spectrogram"
	"github.com/lucasb-eyer/go-colorful"
)

// MaxMagnitude is the magnitude drawn at full brightness. Spectrograms
// should be normalized to it before rendering.
const MaxMagnitude = 255.0

// Ramp constants: hue runs from violet (280) through 360 to 40, lightness
// from 10% to 80%.
const (
	baseHue        = 280.0
	hueSpan        = 120.0
	baseLightness  = 0.10
	lightnessSpan  = 0.70
	fullSaturation = 1.0
)

var ErrEmpty = errors.New("spectrogram has no windows or notes")

// Background is hsl(280, 100%, 10%), the colour of silence.
var Background = Color(0)

// Shade maps a magnitude to HSL with hue in degrees and saturation and
// lightness in [0, 1]. Magnitudes outside [0, MaxMagnitude] are clamped.
func Shade(magnitude float64) (h, s, l float64) {
	ratio := magnitude / MaxMagnitude
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	ratio = min(ratio, 1)

	h = math.Mod(math.Round(ratio*hueSpan+baseHue), 360)
	return h, fullSaturation, baseLightness + lightnessSpan*ratio
}

// Color is the RGBA pixel for a magnitude.
func Color(magnitude float64) color.RGBA {
	r, g, b := colorful.Hsl(Shade(magnitude)).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Render draws one column per window and one row per note. Note 0 is the
// bottom row.
func Render(s *spectrogram.Spectrogram) (*image.RGBA, error) {
	width, height := s.Windows(), s.Height()
	if width == 0 || height == 0 {
		return nil, ErrEmpty
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: Background}, image.Point{}, draw.Src)

	for x, frame := range s.Frames {
		for note, m := range frame {
			img.SetRGBA(x, height-1-note, Color(m))
		}
	}
	return img, nil
}
