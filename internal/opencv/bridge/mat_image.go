// Package bridge converts between Go images and OpenCV Mats. Mats follow
// the OpenCV BGR channel convention; Go images are RGB.
package bridge

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

func MatToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("mat is empty")
	}

	rows := mat.Rows()
	cols := mat.Cols()

	switch mat.Channels() {
	case 1:
		return matToGray(mat, rows, cols), nil
	case 3:
		return matToRGBA(mat, rows, cols), nil
	case 4:
		return matToRGBAWithAlpha(mat, rows, cols), nil
	default:
		return nil, fmt.Errorf("unsupported number of channels: %d", mat.Channels())
	}
}

func matToGray(mat gocv.Mat, rows, cols int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray(x, y, color.Gray{Y: mat.GetUCharAt(y, x)})
		}
	}
	return img
}

func matToRGBA(mat gocv.Mat, rows, cols int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			b := mat.GetUCharAt3(y, x, 0)
			g := mat.GetUCharAt3(y, x, 1)
			r := mat.GetUCharAt3(y, x, 2)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func matToRGBAWithAlpha(mat gocv.Mat, rows, cols int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			b := mat.GetUCharAt3(y, x, 0)
			g := mat.GetUCharAt3(y, x, 1)
			r := mat.GetUCharAt3(y, x, 2)
			a := mat.GetUCharAt3(y, x, 3)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

// ImageToMat builds a BGR Mat from a Go image. The caller owns the returned
// Mat and must close it.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.Mat{}, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return gocv.Mat{}, fmt.Errorf("image has zero dimensions: %dx%d", width, height)
	}

	switch typed := img.(type) {
	case *image.Gray:
		return grayToMat(typed, width, height), nil
	case *image.RGBA:
		return rgbaToMat(typed, width, height), nil
	case *image.NRGBA:
		return nrgbaToMat(typed, width, height), nil
	default:
		return genericImageToMat(img, width, height), nil
	}
}

func grayToMat(img *image.Gray, width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	bounds := img.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			mat.SetUCharAt(y, x, img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
		}
	}
	return mat
}

func rgbaToMat(img *image.RGBA, width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	bounds := img.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			rgba := img.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			mat.SetUCharAt3(y, x, 0, rgba.B)
			mat.SetUCharAt3(y, x, 1, rgba.G)
			mat.SetUCharAt3(y, x, 2, rgba.R)
		}
	}
	return mat
}

func nrgbaToMat(img *image.NRGBA, width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	bounds := img.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nrgba := img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			mat.SetUCharAt3(y, x, 0, nrgba.B)
			mat.SetUCharAt3(y, x, 1, nrgba.G)
			mat.SetUCharAt3(y, x, 2, nrgba.R)
		}
	}
	return mat
}

func genericImageToMat(img image.Image, width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	bounds := img.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt3(y, x, 0, uint8(b>>8))
			mat.SetUCharAt3(y, x, 1, uint8(g>>8))
			mat.SetUCharAt3(y, x, 2, uint8(r>>8))
		}
	}
	return mat
}
