package onnx

import (
	"image"

	"golang.org/x/image/draw"
)

// Layout is the memory order of the model's image input tensor.
type Layout string

const (
	// NHWC is batch, height, width, channels (TFLite-converted models).
	NHWC Layout = "nhwc"

	// NCHW is batch, channels, height, width (PyTorch-exported models).
	NCHW Layout = "nchw"
)

// shape returns the input tensor dimensions for a square size×size RGB input.
func (l Layout) shape(size int) []int64 {
	s := int64(size)
	if l == NCHW {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

// pack resizes img to size×size and returns its RGB channels as float32 values
// in [0,1], ordered according to layout. The resize stretches rather than
// letterboxes, so normalised output coordinates map straight back onto the
// source frame.
func pack(img image.Image, size int, layout Layout) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float32, plane*3)
	for y := range size {
		row := dst.Pix[y*dst.Stride:]
		for x := range size {
			r := float32(row[x*4]) / 255
			g := float32(row[x*4+1]) / 255
			b := float32(row[x*4+2]) / 255
			i := y*size + x
			if layout == NCHW {
				out[i] = r
				out[plane+i] = g
				out[2*plane+i] = b
			} else {
				out[i*3] = r
				out[i*3+1] = g
				out[i*3+2] = b
			}
		}
	}
	return out
}
