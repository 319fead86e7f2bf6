package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// NormalizeImage converts scanner output into a format Tesseract reads
// reliably. PNG and JPEG pass through untouched; TIFF and BMP, the usual
// TWAIN outputs, are re-encoded as PNG. It returns the detected format.
func NormalizeImage(data []byte) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detect image format: %w", err)
	}
	switch format {
	case "png", "jpeg":
		return data, format, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("decode %s image: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, format, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}
