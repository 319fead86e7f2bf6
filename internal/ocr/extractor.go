package ocr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Extractor returns the raw machine-readable text for a disposition file.
type Extractor interface {
	ExtractCode(ctx context.Context, path string) string
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) string

func (f ExtractorFunc) ExtractCode(ctx context.Context, path string) string {
	return f(ctx, path)
}

// maxDispositionBytes bounds how much of a disposition file is read.
const maxDispositionBytes = 64 << 10

// TextFile reads disposition files as UTF-8 text.
type TextFile struct {
	logger *slog.Logger
}

// NewTextFile returns a TextFile extractor. A nil logger uses slog.Default().
func NewTextFile(logger *slog.Logger) *TextFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextFile{logger: logger}
}

func (t *TextFile) ExtractCode(ctx context.Context, path string) string {
	f, err := os.Open(path)
	if err != nil {
		t.logger.WarnContext(ctx, "cannot open disposition file", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDispositionBytes))
	if err != nil {
		t.logger.WarnContext(ctx, "cannot read disposition file", "path", path, "error", err)
		return ""
	}
	return string(data)
}

var checkNumberPattern = regexp.MustCompile(`^\d{7}$`)

// CheckNumber returns the first whitespace separated token of text that is
// exactly seven digits, or "" when there is none.
func CheckNumber(text string) string {
	for _, token := range strings.Fields(text) {
		if checkNumberPattern.MatchString(token) {
			return token
		}
	}
	return ""
}
