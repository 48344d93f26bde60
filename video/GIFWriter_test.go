package video

import (
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

func TestGIFWriter(t *testing.T) {
	const (
		width, height = 2, 3
		samples       = 2
		scale         = 2
		steps         = 4
		context       = 3
	)
	dir := filepath.Join(t.TempDir(), "videos")
	w, err := NewGIFWriter(dir, width, height, scale)
	if err != nil {
		t.Fatal(err)
	}

	frame := func(v float64) []float64 {
		out := make([]float64, samples*width*height)
		for i := range out {
			out[i] = v
		}
		return out
	}
	truth := make([][]float64, steps)
	for i := range truth {
		truth[i] = frame(1)
	}
	recon := [][]float64{frame(1), frame(1), frame(1)}
	imagined := [][]float64{frame(0)}

	w.Observe(truth, recon, imagined, 30)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	if len(w.Written()) != 1 {
		t.Fatalf("observe: want(1) file written, have(%d)", len(w.Written()))
	}

	file, err := os.Open(filepath.Join(dir, "model_error_30.gif"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	anim, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Image) != steps {
		t.Fatalf("decode: want(%d) frames, have(%d)", steps, len(anim.Image))
	}

	bounds := anim.Image[0].Bounds()
	if bounds.Dx() != samples*width*scale || bounds.Dy() != 3*height*scale {
		t.Errorf("decode: unexpected frame size %v", bounds)
	}

	gray := func(frame, x, y int) uint8 {
		return color.GrayModel.Convert(anim.Image[frame].At(x, y)).(color.Gray).Y
	}
	h := height * scale

	// Reconstructed frame: perfect prediction, error is mid gray
	if v := gray(0, 1, h+1); v != 255 {
		t.Errorf("reconstruction: want(255), have(%d)", v)
	}
	if v := gray(0, 1, 2*h+1); v < 126 || v > 129 {
		t.Errorf("reconstruction error: want(~128), have(%d)", v)
	}

	// Imagined frame: predicts black, error is black
	if v := gray(context, 1, h+1); v != 0 {
		t.Errorf("imagination: want(0), have(%d)", v)
	}
	if v := gray(context, 1, 2*h+1); v != 0 {
		t.Errorf("imagination error: want(0), have(%d)", v)
	}
}

func TestGIFWriterErrors(t *testing.T) {
	if _, err := NewGIFWriter(t.TempDir(), 0, 1, 1); err == nil {
		t.Errorf("newGIFWriter: expected error for zero width")
	}

	w, err := NewGIFWriter(t.TempDir(), 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	w.Observe([][]float64{make([]float64, 4)}, nil, nil, 0)
	if w.Err() == nil {
		t.Errorf("observe: expected error for missing predictions")
	}
	w.Observe([][]float64{make([]float64, 3)}, [][]float64{make([]float64, 3)},
		nil, 0)
	if w.Err() == nil {
		t.Errorf("observe: expected error for partial image")
	}
}
