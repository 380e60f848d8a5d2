package core

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
)

// ImageNet normalization statistics, matching the transform the vision
// encoder was trained with.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// PixelValues is a normalized square RGB image in CHW layout.
type PixelValues struct {
	Data []float32
	Size int
}

// Valid reports whether the tensor has the expected 3*Size*Size layout.
func (p PixelValues) Valid() bool {
	return p.Size > 0 && len(p.Data) == 3*p.Size*p.Size
}

// At returns the normalized value for channel c at row y, column x.
func (p PixelValues) At(c, y, x int) float32 {
	return p.Data[c*p.Size*p.Size+y*p.Size+x]
}

// Image reverses the normalization back into an 8-bit RGBA image.
func (p PixelValues) Image() (*image.RGBA, error) {
	if !p.Valid() {
		return nil, errors.New("core: pixel values have invalid shape")
	}
	img := image.NewRGBA(image.Rect(0, 0, p.Size, p.Size))
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			var rgb [3]uint8
			for c := 0; c < 3; c++ {
				v := p.At(c, y, x)*ImageNetStd[c] + ImageNetMean[c]
				if v < 0 {
					v = 0
				}
				if v > 1 {
					v = 1
				}
				rgb[c] = uint8(v*255 + 0.5)
			}
			img.SetRGBA(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	return img, nil
}

// EncodePNG re-encodes the tensor as PNG bytes for wire transport to
// hosted model APIs.
func (p PixelValues) EncodePNG() ([]byte, error) {
	img, err := p.Image()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
