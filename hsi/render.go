package hsi

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Palette returns the colour table for class maps: black background at
// entry 0 then one hue per class.
func Palette(classes int) color.Palette {
	pal := color.Palette{color.Black}
	for i := 0; i < classes; i++ {
		pal = append(pal, hsv(float64(i)/float64(classes), 0.75, 0.95))
	}
	return pal
}

func hsv(h, s, v float64) color.RGBA {
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return color.RGBA{uint8(r*255 + 0.5), uint8(g*255 + 0.5), uint8(b*255 + 0.5), 255}
}

// ClassMap renders a label raster as a paletted image, labels may be the
// scene ground truth or a prediction raster of the same size.
func (s *Scene) ClassMap(labels []int32) *image.Paletted {
	if labels == nil {
		labels = s.Labels
	}
	img := image.NewPaletted(image.Rect(0, 0, s.Width, s.Height), Palette(s.NumClasses()))
	for i, l := range labels {
		img.Pix[i] = uint8(l)
	}
	return img
}

// PredictionRaster scatters zero based per sample predictions onto a scene
// sized label raster, pixels outside index stay 0.
func (s *Scene) PredictionRaster(index []int, preds []int32) []int32 {
	raster := make([]int32, s.Pixels())
	for i, ix := range index {
		raster[ix] = preds[i] + 1
	}
	return raster
}

// Composite renders a false colour image from three scene bands scaled to
// the full intensity range.
func (s *Scene) Composite(rBand, gBand, bBand int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for c, band := range []int{rBand, gBand, bBand} {
		lo, hi := s.Data[band], s.Data[band]
		for ix := 0; ix < s.Pixels(); ix++ {
			v := s.Data[ix*s.Bands+band]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		scale := float32(0)
		if hi > lo {
			scale = 255 / (hi - lo)
		}
		for ix := 0; ix < s.Pixels(); ix++ {
			v := (s.Data[ix*s.Bands+band] - lo) * scale
			img.Pix[ix*4+c] = uint8(v + 0.5)
			img.Pix[ix*4+3] = 255
		}
	}
	return img
}

// SavePNG writes the image to a png format file
func SavePNG(file string, img image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
