// Package tesseract reads check numbers from scanned images with Tesseract.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/otiai10/gosseract/v2"

	"checkscan/internal/ocr"
)

// Reader implements ocr.Extractor on top of a gosseract client. A client is
// created per call; gosseract clients are not safe for concurrent use and the
// builder extracts groups in parallel.
type Reader struct {
	clientFactory func() *gosseract.Client
	language      string
	dataPath      string
	logger        *slog.Logger
}

type Option func(*Reader)

func WithLanguage(lang string) Option {
	return func(r *Reader) {
		if lang != "" {
			r.language = lang
		}
	}
}

// WithDataPath points Tesseract at a tessdata directory.
func WithDataPath(path string) Option {
	return func(r *Reader) {
		r.dataPath = path
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

func New(opts ...Option) *Reader {
	r := &Reader{
		clientFactory: gosseract.NewClient,
		language:      "fra",
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ocr.Extractor = (*Reader)(nil)

// ExtractCode OCRs the image at path and returns the check number found in
// it, or "" on any failure.
func (r *Reader) ExtractCode(ctx context.Context, path string) string {
	text, err := r.recognize(path)
	if err != nil {
		r.logger.ErrorContext(ctx, "ocr failed", "path", path, "error", err)
		return ""
	}
	return ocr.CheckNumber(text)
}

func (r *Reader) recognize(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	img, _, err := ocr.NormalizeImage(data)
	if err != nil {
		return "", err
	}

	c := r.clientFactory()
	defer c.Close()

	if r.dataPath != "" {
		if err := c.SetTessdataPrefix(r.dataPath); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
