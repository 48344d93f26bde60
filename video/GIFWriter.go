// Package video writes video summaries of a world model's predictions
package video

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
)

// GIFWriter writes video summaries to GIF files. Each frame of a
// summary shows the ground truth, the model's prediction, and the
// prediction error stacked vertically, with the sampled sequences side
// by side. The model's prediction is the reconstruction for the first
// steps and the open-loop imagination for the rest.
type GIFWriter struct {
	dir    string
	width  int
	height int
	scale  int
	delay  int // Delay between frames in 100ths of a second

	err     error
	written []string
}

// NewGIFWriter returns a GIFWriter writing summaries of width x height
// grayscale frames to dir, enlarging each pixel scale times
func NewGIFWriter(dir string, width, height, scale int) (*GIFWriter, error) {
	if width <= 0 || height <= 0 || scale <= 0 {
		return nil, fmt.Errorf("newGIFWriter: width, height, and scale must "+
			"be positive, have %d, %d, and %d", width, height, scale)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newGIFWriter: %v", err)
	}
	return &GIFWriter{
		dir:    dir,
		width:  width,
		height: height,
		scale:  scale,
		delay:  10,
	}, nil
}

// Observe writes the summary of step to model_error_<step>.gif. Its
// signature matches dreamer.VideoObserver. Errors are kept and returned
// by Err, since observers cannot return them.
func (g *GIFWriter) Observe(groundTruth, reconstruction, imagined [][]float64,
	step int) {
	filename := filepath.Join(g.dir, fmt.Sprintf("model_error_%d.gif", step))
	if err := g.write(filename, groundTruth, reconstruction, imagined); err != nil {
		g.err = fmt.Errorf("observe: step %d: %v", step, err)
		return
	}
	g.written = append(g.written, filename)
}

// Err returns the last error encountered while writing a summary
func (g *GIFWriter) Err() error {
	return g.err
}

// Written returns the files written so far
func (g *GIFWriter) Written() []string {
	return append([]string(nil), g.written...)
}

func (g *GIFWriter) write(filename string, groundTruth, reconstruction,
	imagined [][]float64) error {
	if len(reconstruction)+len(imagined) != len(groundTruth) {
		return fmt.Errorf("have %d ground truth frames but %d predicted",
			len(groundTruth), len(reconstruction)+len(imagined))
	}
	if len(groundTruth) == 0 {
		return fmt.Errorf("no frames")
	}
	pixels := g.width * g.height
	if len(groundTruth[0]) == 0 || len(groundTruth[0])%pixels != 0 {
		return fmt.Errorf("frames of %d values are not a whole number of "+
			"%dx%d images", len(groundTruth[0]), g.width, g.height)
	}
	samples := len(groundTruth[0]) / pixels

	palette := make(color.Palette, 256)
	for i := range palette {
		palette[i] = color.Gray{Y: uint8(i)}
	}

	anim := &gif.GIF{}
	for t := range groundTruth {
		model := imagined
		k := t - len(reconstruction)
		if k < 0 {
			model, k = reconstruction, t
		}
		if len(groundTruth[t]) != samples*pixels ||
			len(model[k]) != samples*pixels {
			return fmt.Errorf("frame %d has the wrong number of values", t)
		}

		img := g.frame(groundTruth[t], model[k], samples)
		paletted := image.NewPaletted(img.Bounds(), palette)
		for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
			for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
				paletted.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
			}
		}
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, g.delay)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(file, anim); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// frame draws one frame of a summary: ground truth on top, model in the
// middle, and the error (model - truth + 1) / 2 on the bottom
func (g *GIFWriter) frame(truth, model []float64, samples int) image.Image {
	w, h := g.width*g.scale, g.height*g.scale
	dc := gg.NewContext(samples*w, 3*h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	pixels := g.width * g.height
	for s := 0; s < samples; s++ {
		for p := 0; p < pixels; p++ {
			i := s*pixels + p
			x := float64(s*w + (p%g.width)*g.scale)
			y := float64((p / g.width) * g.scale)

			rows := []float64{truth[i], model[i], (model[i] - truth[i] + 1) / 2}
			for r, v := range rows {
				v = math.Max(0, math.Min(1, v))
				dc.DrawRectangle(x, y+float64(r*h), float64(g.scale),
					float64(g.scale))
				dc.SetRGB(v, v, v)
				dc.Fill()
			}
		}
	}
	return dc.Image()
}
