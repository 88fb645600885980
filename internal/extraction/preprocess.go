package extraction

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg" // camera CLIs emit JPEG by default

	xdraw "golang.org/x/image/draw"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// Preprocess prepares a captured frame for text extraction: crop to the
// configured ROI, then optional grayscale, binarization, noise reduction, and
// resize, each individually toggleable via the snapshot. The output is always
// PNG regardless of the input encoding.
//
// An ROI that would crop out of the frame is a configuration error and fails
// fast; clamping would silently OCR the wrong part of the display.
func Preprocess(frame []byte, roi config.ROI, pp config.Preprocess) ([]byte, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeCaptureFault,
			"captured frame is not a decodable image", err)
	}

	img := crop(src, roi)

	if pp.Grayscale || pp.Threshold {
		img = grayscale(img)
	}
	if pp.Threshold {
		img = threshold(img, pp.ThresholdLevel)
	}
	if pp.NoiseReduction {
		img = medianFilter(img)
	}
	if pp.ScaleFactor > 0 && pp.ScaleFactor != 1 {
		img = resize(img, pp.ScaleFactor)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encoding preprocessed frame: %w", err)
	}
	return out.Bytes(), nil
}

// crop scales the normalized ROI to the frame's pixel bounds.
func crop(src image.Image, roi config.ROI) image.Image {
	b := src.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())

	rect := image.Rect(
		b.Min.X+int(roi.X*w),
		b.Min.Y+int(roi.Y*h),
		b.Min.X+int((roi.X+roi.Width)*w),
		b.Min.Y+int((roi.Y+roi.Height)*h),
	)

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, rect.Min, xdraw.Src)
	return dst
}

func grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// threshold binarizes a grayscale image: LED segments light, background dark.
func threshold(src image.Image, level uint8) *image.Gray {
	gray, ok := src.(*image.Gray)
	if !ok {
		gray = grayscale(src)
	}
	b := gray.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y >= level {
				dst.SetGray(x, y, color.Gray{Y: 255})
			} else {
				dst.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return dst
}

// medianFilter applies a 3x3 median to knock out salt-and-pepper sensor
// noise without blurring segment edges the way a box blur would.
func medianFilter(src image.Image) *image.Gray {
	gray, ok := src.(*image.Gray)
	if !ok {
		gray = grayscale(src)
	}
	b := gray.Bounds()
	dst := image.NewGray(b)
	var window [9]uint8
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					window[n] = gray.GrayAt(px, py).Y
					n++
				}
			}
			dst.SetGray(x, y, color.Gray{Y: median(window[:n])})
		}
	}
	return dst
}

// median sorts in place; the window is at most 9 elements so insertion sort
// beats anything fancier.
func median(w []uint8) uint8 {
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j-1] > w[j]; j-- {
			w[j-1], w[j] = w[j], w[j-1]
		}
	}
	return w[len(w)/2]
}

// resize scales the image by factor using bilinear interpolation. OCR engines
// resolve small seven-segment glyphs noticeably better at 2x.
func resize(src image.Image, factor float64) image.Image {
	b := src.Bounds()
	dw := int(float64(b.Dx()) * factor)
	dh := int(float64(b.Dy()) * factor)
	if dw < 1 || dh < 1 {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
