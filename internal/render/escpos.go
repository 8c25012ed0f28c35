// Package render turns a job into the byte stream the receipt printer
// understands and owns the per-job device connection.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/bakebake-xr/printd/internal/core"
)

// ESC/POS command sequences. The printer runs in Shift_JIS kanji mode;
// the image raster command resets it, so kanji mode is re-selected
// after every image.
var (
	cmdInit        = []byte{0x1b, 0x40}
	cmdKanjiMode   = []byte{0x1c, 0x26}
	cmdShiftJIS    = []byte{0x1c, 0x43, 0x01}
	cmdAlignCenter = []byte{0x1b, 0x61, 0x01}
	cmdAlignLeft   = []byte{0x1b, 0x61, 0x00}
	cmdBoldOn      = []byte{0x1b, 0x45, 0x01}
	cmdBoldOff     = []byte{0x1b, 0x45, 0x00}
	cmdDoubleSize  = []byte{0x1d, 0x21, 0x11}
	cmdNormalSize  = []byte{0x1d, 0x21, 0x00}
	cmdCut         = []byte{0x1d, 0x56, 0x00}
)

const rule = "━━━━━━━━━━━━━━━━━━\n"

// Receipt renders the observation-record receipt layout onto a device
// handle supplied by the caller.
type Receipt struct {
	widthPx int
	header  string
	footer  string
}

func NewReceipt(widthPx int) *Receipt {
	return &Receipt{
		widthPx: widthPx,
		header:  "BAKEBAKE_XR\n",
		footer:  "この記録は感熱紙に印刷されています。\n時間が経てば、この記憶も消えます。\n\n\n\n",
	}
}

// Render writes the full receipt for job. A write error fails the job;
// an undecodable image does not, the textual portion still prints.
func (r *Receipt) Render(dev core.Device, job *core.Job) error {
	w := &deviceWriter{dev: dev}

	w.raw(cmdInit)
	w.raw(cmdKanjiMode)
	w.raw(cmdShiftJIS)

	w.raw(cmdAlignCenter)
	w.raw(cmdBoldOn)
	w.raw(cmdDoubleSize)
	w.text(r.header)

	w.raw(cmdNormalSize)
	w.raw(cmdBoldOff)
	w.text(rule)
	w.text("【 観測記録 】\n\n")

	if job.ImageData != "" {
		if img, err := decodeImage(job.ImageData); err != nil {
			log.Printf("render: image error for %s (skipping): %v", job.ID, err)
		} else {
			w.raster(img, r.widthPx)
			w.text("\n")
			w.raw(cmdKanjiMode)
			w.raw(cmdShiftJIS)
		}
	}

	w.raw(cmdAlignCenter)
	w.raw(cmdBoldOn)
	w.raw(cmdDoubleSize)
	w.text(job.Label + "\n")
	w.raw(cmdNormalSize)
	w.raw(cmdBoldOff)
	w.text("\n")

	if job.Body != "" {
		w.raw(cmdAlignLeft)
		w.text(job.Body + "\n\n")
	}

	w.raw(cmdAlignCenter)
	w.text(rule)
	w.text(r.footer)

	w.raw(cmdCut)

	if w.err != nil {
		return fmt.Errorf("failed to write to device: %w", w.err)
	}
	return nil
}

// deviceWriter accumulates the first write error so the layout code
// stays free of per-line error checks.
type deviceWriter struct {
	dev core.Device
	err error
}

func (w *deviceWriter) raw(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.dev.Write(b)
}

func (w *deviceWriter) text(s string) {
	if w.err != nil {
		return
	}
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		// Unmappable runes degrade to a lossless-enough UTF-8 passthrough
		// rather than failing the whole receipt.
		encoded = []byte(s)
	}
	_, w.err = w.dev.Write(encoded)
}

func decodeImage(data string) (image.Image, error) {
	// Data URLs arrive as "data:image/png;base64,...."; keep only the payload.
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
