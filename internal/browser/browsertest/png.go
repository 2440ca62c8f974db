package browsertest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// PNG returns a small solid-colour PNG, standing in for a screenshot.
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 0x2d, G: 0x6c, B: 0xdf, A: 0xff})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
