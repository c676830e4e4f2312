// Package imaging shrinks avatars to upload limits and composes avatar grids.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"math"

	"emperror.dev/errors"
	"github.com/disintegration/imaging"
)

// GridWidth is the pixel width of a composed avatar grid.
const GridWidth = 2520

// ResizeToLimit halves the resolution of a PNG, JPEG or GIF until its
// encoded size is at most limit bytes. Animated GIFs keep every frame.
func ResizeToLimit(data []byte, limit int) ([]byte, error) {
	for len(data) > limit {
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decode image config")
		}
		switch format {
		case "gif":
			data, err = halveGIF(data)
		case "png":
			data, err = halve(data, imaging.PNG)
		case "jpeg":
			data, err = halve(data, imaging.JPEG)
		default:
			return nil, errors.Errorf("cannot resize %s images", format)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

var errTooSmall = errors.New("image cannot be shrunk below the size limit")

func halve(data []byte, format imaging.Format) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	b := img.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return nil, errTooSmall
	}
	resized := imaging.Resize(img, b.Dx()/2, b.Dy()/2, imaging.CatmullRom)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, errors.Wrap(err, "encode image")
	}
	return buf.Bytes(), nil
}

func halveGIF(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode gif")
	}
	if g.Config.Width < 2 || g.Config.Height < 2 {
		return nil, errTooSmall
	}

	for i, frame := range g.Image {
		r := frame.Bounds()
		dst := image.Rect(r.Min.X/2, r.Min.Y/2, r.Max.X/2, r.Max.Y/2)
		if dst.Dx() == 0 || dst.Dy() == 0 {
			dst.Max = dst.Min.Add(image.Pt(1, 1))
		}
		resized := imaging.Resize(frame, dst.Dx(), dst.Dy(), imaging.CatmullRom)

		p := image.NewPaletted(dst, frame.Palette)
		draw.Draw(p, dst, resized, image.Point{}, draw.Src)
		g.Image[i] = p
	}
	g.Config.Width /= 2
	g.Config.Height /= 2

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, errors.Wrap(err, "encode gif")
	}
	return buf.Bytes(), nil
}

// Grid lays images out on a transparent square-ish grid GridWidth pixels
// wide, encodes it as PNG and shrinks it to limit bytes. Empty or undecodable
// entries leave their cell blank.
func Grid(images [][]byte, limit int) ([]byte, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to compose")
	}
	xbound := int(math.Ceil(math.Sqrt(float64(len(images)))))
	ybound := int(math.Ceil(float64(len(images)) / float64(xbound)))
	size := GridWidth / xbound

	base := imaging.New(xbound*size, ybound*size, color.NRGBA{})
	for i, data := range images {
		if len(data) == 0 {
			continue
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		cell := imaging.Resize(img, size, size, imaging.CatmullRom)
		x, y := i%xbound, i/xbound
		base = imaging.Paste(base, cell, image.Pt(x*size, y*size))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, base, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "encode grid")
	}
	return ResizeToLimit(buf.Bytes(), limit)
}
