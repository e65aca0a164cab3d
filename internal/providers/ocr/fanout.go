package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/unicode/norm"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

// ErrOCRFailure is returned when any page of a task could not be recognized.
var ErrOCRFailure = errors.New("ocr: page recognition failed")

// Recognizer recognizes the text of a single page image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// FanOut recognizes the pages of a task concurrently. The limiter is shared
// by every worker, so at most limit OCR calls run process-wide.
type FanOut struct {
	rec     Recognizer
	limiter *semaphore.Weighted
}

// NewFanOut returns a fan-out bounded by limit concurrent calls.
func NewFanOut(rec Recognizer, limit int) *FanOut {
	if limit < 1 {
		limit = 1
	}
	return &FanOut{rec: rec, limiter: semaphore.NewWeighted(int64(limit))}
}

// ExtractText recognizes every page and joins them in input order as
// "\n----page n----\n" + text. The first failure cancels the rest.
func (f *FanOut) ExtractText(ctx context.Context, pages []domain.Page) (string, error) {
	texts := make([]string, len(pages))
	eg, gctx := errgroup.WithContext(ctx)
	for i, page := range pages {
		eg.Go(func() error {
			image, err := page.Decode()
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			if err := f.limiter.Acquire(gctx, 1); err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			defer f.limiter.Release(1)
			text, err := f.rec.Recognize(gctx, image)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			texts[i] = norm.NFC.String(text)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRFailure, err)
	}

	var b strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&b, "\n----page %d----\n", i+1)
		b.WriteString(text)
	}
	return b.String(), nil
}
