package vision

import (
	"image"

	"github.com/your-org/photoid/internal/models"
)

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW resizes an image and converts it to normalized CHW
// float32: pixel = (pixel - mean) / std, channel-major.
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			idx := y*w + x
			data[0*h*w+idx] = (float32(r>>8) - mean[0]) / std[0]
			data[1*h*w+idx] = (float32(g>>8) - mean[1]) / std[1]
			data[2*h*w+idx] = (float32(b>>8) - mean[2]) / std[2]
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize. Fast, and adequate as
// model input.
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			dst.Set(x, y, img.At(bounds.Min.X+x*srcW/targetW, bounds.Min.Y+y*srcH/targetH))
		}
	}
	return dst
}

const cropPadding = 0.1

// cropFace cuts the face region out of the image with a small margin
// around the box. Returns nil when the clamped box is degenerate.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1, y1 := int(bbox[0]), int(bbox[1])
	x2, y2 := int(bbox[2]), int(bbox[3])

	x1, y1, x2, y2 = clampRect(x1, y1, x2, y2, bounds)
	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return nil
	}

	x1 -= int(float32(w) * cropPadding)
	y1 -= int(float32(h) * cropPadding)
	x2 += int(float32(w) * cropPadding)
	y2 += int(float32(h) * cropPadding)
	x1, y1, x2, y2 = clampRect(x1, y1, x2, y2, bounds)

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}
	return crop
}

func clampRect(x1, y1, x2, y2 int, bounds image.Rectangle) (int, int, int, int) {
	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	return x1, y1, x2, y2
}

// toBBox converts corner coordinates to the stored x/y/width/height form.
func toBBox(bbox [4]float32) models.BBox {
	return models.BBox{
		X: int(bbox[0]),
		Y: int(bbox[1]),
		W: int(bbox[2] - bbox[0]),
		H: int(bbox[3] - bbox[1]),
	}
}
