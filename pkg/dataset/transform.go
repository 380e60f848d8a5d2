package dataset

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"popeval/pkg/core"
)

// Transform converts a decoded image into the fixed-size normalized
// tensor a vision encoder expects.
type Transform func(img image.Image) (core.PixelValues, error)

// BuildTransform returns the standard evaluation transform: optional
// pad-to-square with the mean fill color, Catmull-Rom resize to
// inputSize, then ImageNet mean/std normalization in CHW layout.
func BuildTransform(inputSize int, pad2square bool) Transform {
	return func(img image.Image) (core.PixelValues, error) {
		if inputSize <= 0 {
			return core.PixelValues{}, fmt.Errorf("dataset: input size must be positive, got %d", inputSize)
		}
		if pad2square {
			img = padToSquare(img)
		}

		resized := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

		plane := inputSize * inputSize
		data := make([]float32, 3*plane)
		for y := 0; y < inputSize; y++ {
			for x := 0; x < inputSize; x++ {
				offset := resized.PixOffset(x, y)
				for c := 0; c < 3; c++ {
					v := float32(resized.Pix[offset+c]) / 255
					data[c*plane+y*inputSize+x] = (v - core.ImageNetMean[c]) / core.ImageNetStd[c]
				}
			}
		}
		return core.PixelValues{Data: data, Size: inputSize}, nil
	}
}

func padToSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == h {
		return img
	}
	edge := w
	if h > edge {
		edge = h
	}

	fill := color.RGBA{
		R: uint8(core.ImageNetMean[0]*255 + 0.5),
		G: uint8(core.ImageNetMean[1]*255 + 0.5),
		B: uint8(core.ImageNetMean[2]*255 + 0.5),
		A: 255,
	}
	square := image.NewRGBA(image.Rect(0, 0, edge, edge))
	draw.Draw(square, square.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	// Center the original image inside the padded canvas.
	origin := image.Pt((edge-w)/2, (edge-h)/2)
	draw.Draw(square, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}, img, bounds.Min, draw.Src)
	return square
}
