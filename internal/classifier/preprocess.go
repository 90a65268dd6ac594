package classifier

import (
	"image"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics used to normalize model input, RGB order.
var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// ResizeToInput scales an image to the model edge length. Aspect ratio is
// not preserved; the model consumes a square frame.
func ResizeToInput(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == InputSize && b.Dy() == InputSize {
		return img
	}
	return resize.Resize(InputSize, InputSize, img, resize.Lanczos3)
}

// PrepareInput resizes img to the model geometry and fills the normalized
// CHW planes: each channel scaled to [0,1], mean-subtracted, divided by the
// channel standard deviation.
func PrepareInput(img image.Image) *Input {
	resized := ResizeToInput(img)

	data := make([]float32, 3*InputSize*InputSize)
	plane := InputSize * InputSize

	bounds := resized.Bounds()
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := y*InputSize + x
			data[idx] = (float32(r>>8)/255.0 - normMean[0]) / normStd[0]
			data[plane+idx] = (float32(g>>8)/255.0 - normMean[1]) / normStd[1]
			data[2*plane+idx] = (float32(b>>8)/255.0 - normMean[2]) / normStd[2]
		}
	}

	return &Input{Image: resized, Data: data}
}
