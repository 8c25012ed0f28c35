package render

import (
	"image"
	"image/color"
)

// lumaThreshold splits grayscale into print/no-print dots, matching a
// 1-bit conversion of the source image.
const lumaThreshold = 0x80

// raster scales img to the print width and emits it as a GS v 0
// raster-bit-image command.
func (w *deviceWriter) raster(img image.Image, widthPx int) {
	if w.err != nil {
		return
	}

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return
	}

	dstW := widthPx
	dstH := srcH * dstW / srcW
	if dstH == 0 {
		dstH = 1
	}

	rowBytes := (dstW + 7) / 8
	data := make([]byte, 0, 8+rowBytes*dstH)
	data = append(data,
		0x1d, 0x76, 0x30, 0x00,
		byte(rowBytes&0xff), byte(rowBytes>>8),
		byte(dstH&0xff), byte(dstH>>8),
	)

	row := make([]byte, rowBytes)
	for y := 0; y < dstH; y++ {
		for i := range row {
			row[i] = 0
		}
		srcY := bounds.Min.Y + y*srcH/dstH
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + x*srcW/dstW
			gray := color.GrayModel.Convert(img.At(srcX, srcY)).(color.Gray)
			if gray.Y < lumaThreshold {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
		data = append(data, row...)
	}

	w.raw(data)
}
