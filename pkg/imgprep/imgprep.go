package imgprep

// Package imgprep gets arbitrary images into the fixed input size of a detector.
// The image is scaled to fit, keeping its aspect ratio, and the leftover area on the
// right or bottom edge is filled with black. Because the padding is only ever on the
// bottom/right, detections map back to the original image with a single scale factor.

import (
	"path/filepath"
	"strings"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/ovplugin/pkg/nn"
)

// Transform maps coordinates between the original image and the letterboxed image
type Transform struct {
	Scale        float32 // letterboxed = original * Scale
	ScaledWidth  int     // Size of the image content inside the letterboxed image
	ScaledHeight int
}

// Identity transform, for when the image is already the right size
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}

// ToOriginal converts a detection (normalized to a netWidth x netHeight letterboxed image)
// into a pixel rectangle in the original image.
func (t Transform) ToOriginal(d nn.Detection, netWidth, netHeight int) nn.Rect {
	s := 1 / t.Scale
	x1 := d.X * float32(netWidth) * s
	y1 := d.Y * float32(netHeight) * s
	x2 := (d.X + d.W) * float32(netWidth) * s
	y2 := (d.Y + d.H) * float32(netHeight) * s
	return nn.Rect{
		X:      int(x1 + 0.5),
		Y:      int(y1 + 0.5),
		Width:  int(x2+0.5) - int(x1+0.5),
		Height: int(y2+0.5) - int(y1+0.5),
	}
}

// Fit computes the transform that scales a srcWidth x srcHeight image to fit inside dstWidth x dstHeight
func Fit(srcWidth, srcHeight, dstWidth, dstHeight int) Transform {
	scaleX := float32(dstWidth) / float32(srcWidth)
	scaleY := float32(dstHeight) / float32(srcHeight)
	scale := min(scaleX, scaleY)
	return Transform{
		Scale:        scale,
		ScaledWidth:  min(dstWidth, int(float32(srcWidth)*scale+0.5)),
		ScaledHeight: min(dstHeight, int(float32(srcHeight)*scale+0.5)),
	}
}

// ToRGB returns an RGB version of 'img'. If 'img' is already RGB, it is returned unmodified.
// Gray images are expanded, and alpha is discarded.
func ToRGB(img *cimg.Image) *cimg.Image {
	nchan := img.NChan()
	if nchan == 3 {
		return img
	}
	rgb := cimg.NewImage(img.Width, img.Height, cimg.PixelFormatRGB)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride : y*img.Stride+img.Width*nchan]
		dst := rgb.Pixels[y*rgb.Stride : y*rgb.Stride+img.Width*3]
		for x := 0; x < img.Width; x++ {
			if nchan == 1 {
				dst[x*3] = src[x]
				dst[x*3+1] = src[x]
				dst[x*3+2] = src[x]
			} else {
				dst[x*3] = src[x*nchan]
				dst[x*3+1] = src[x*nchan+1]
				dst[x*3+2] = src[x*nchan+2]
			}
		}
	}
	return rgb
}

// Letterbox scales the RGB image 'src' into 'dst', which is dstWidth x dstHeight x 3 bytes,
// with a row stride of dstStride.
func Letterbox(src *cimg.Image, dst []byte, dstWidth, dstHeight, dstStride int) Transform {
	src = ToRGB(src)
	dstWrap := cimg.WrapImageStrided(dstWidth, dstHeight, cimg.PixelFormatRGB, dst, dstStride)
	if src.Width == dstWidth && src.Height == dstHeight {
		dstWrap.CopyImageRect(src, 0, 0, src.Width, src.Height, 0, 0)
		return IdentityTransform()
	}

	xform := Fit(src.Width, src.Height, dstWidth, dstHeight)
	if xform.ScaledWidth == src.Width && xform.ScaledHeight == src.Height {
		dstWrap.CopyImageRect(src, 0, 0, src.Width, src.Height, 0, 0)
	} else {
		resizeParams := cimg.ResizeParams{CheapSRGBFilter: true}
		if xform.Scale < 1 {
			// Box filter for downsampling, in case of a large ratio
			resizeParams.Filter = cimg.ResizeFilterBox
		} else {
			// Triangle is bilinear on upsampling
			resizeParams.Filter = cimg.ResizeFilterTriangle
		}
		scaledWrap := cimg.WrapImageStrided(xform.ScaledWidth, xform.ScaledHeight, cimg.PixelFormatRGB, dst, dstStride)
		cimg.Resize(src, scaledWrap, &resizeParams)
	}

	// Black on the right edge, then the bottom edge
	for y := 0; y < xform.ScaledHeight; y++ {
		clear(dst[y*dstStride+3*xform.ScaledWidth : y*dstStride+3*dstWidth])
	}
	for y := xform.ScaledHeight; y < dstHeight; y++ {
		clear(dst[y*dstStride : y*dstStride+3*dstWidth])
	}
	return xform
}

// LetterboxNew is Letterbox into a newly allocated image
func LetterboxNew(src *cimg.Image, width, height int) (*cimg.Image, Transform) {
	dst := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	xform := Letterbox(src, dst.Pixels, width, height, dst.Stride)
	return dst, xform
}

// PrepFilename returns the name for a letterboxed copy of an image, eg "dir/cat.jpg" -> "dir/cat_prep.jpg"
func PrepFilename(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_prep" + ext
}
