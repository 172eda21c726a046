package overlay

// Package overlay draws detection results onto an image, for eyeballing what a model found.

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Box is one detection, in pixel coordinates of the image being drawn on
type Box struct {
	Rect  nn.Rect
	Class string
	Conf  float32
	Label int32
}

// A few high contrast colors, cycled by class label
var palette = []color.RGBA{
	{255, 56, 56, 255},
	{72, 249, 10, 255},
	{0, 194, 255, 255},
	{255, 157, 151, 255},
	{255, 178, 29, 255},
	{207, 210, 49, 255},
	{146, 204, 23, 255},
	{52, 69, 147, 255},
}

// Color used for a class label
func LabelColor(label int32) color.RGBA {
	if label < 0 {
		label = -label
	}
	return palette[int(label)%len(palette)]
}

type Options struct {
	LineWidth float64
	FontSize  float64 // 0 = no text
}

func DefaultOptions() Options {
	return Options{
		LineWidth: 2,
		FontSize:  12,
	}
}

// Draw returns a copy of the RGB image 'img' with the boxes drawn on it
func Draw(img *cimg.Image, boxes []Box, options Options) *cimg.Image {
	dc := gg.NewContextForRGBA(toRGBA(img))
	for _, b := range boxes {
		c := LabelColor(b.Label)
		r := image.Rect(b.Rect.X, b.Rect.Y, b.Rect.X2(), b.Rect.Y2())
		dc.SetColor(c)
		dc.SetLineWidth(options.LineWidth)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()
		if options.FontSize > 0 {
			dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: options.FontSize}))
			text := fmt.Sprintf("%v %.2f", b.Class, b.Conf)
			y := float64(r.Min.Y) - 2
			if y < options.FontSize {
				// No room above the box, so put the text inside it
				y = float64(r.Min.Y) + options.FontSize
			}
			dc.DrawString(text, float64(r.Min.X)+1, y)
		}
	}
	return fromRGBA(dc.Image().(*image.RGBA))
}

func toRGBA(rgb *cimg.Image) *image.RGBA {
	if rgb.NChan() != 3 {
		panic("overlay: image must be RGB")
	}
	dst := image.NewRGBA(image.Rect(0, 0, rgb.Width, rgb.Height))
	for y := 0; y < rgb.Height; y++ {
		src := rgb.Pixels[y*rgb.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < rgb.Width; x++ {
			out[x*4] = src[x*3]
			out[x*4+1] = src[x*3+1]
			out[x*4+2] = src[x*3+2]
			out[x*4+3] = 255
		}
	}
	return dst
}

func fromRGBA(src *image.RGBA) *cimg.Image {
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	dst := cimg.NewImage(w, h, cimg.PixelFormatRGB)
	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride:]
		out := dst.Pixels[y*dst.Stride:]
		for x := 0; x < w; x++ {
			out[x*3] = in[x*4]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4+2]
		}
	}
	return dst
}
