package ingestion_engine

import (
	"bytes"
	"context"
	"strings"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
)

// Content types the extractor accepts, mirroring the upload formats the
// service supports.
var supportedContentTypes = map[string]bool{
	"text/plain":      true,
	"text/markdown":   true,
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText converts the document and emits its sections in order, each
// trimmed of surrounding whitespace. An unsupported content type fails
// synchronously as a validation error; conversion failures surface through
// the errgroup.
func (e *DocconvExtractor) ExtractText(ctx context.Context, g *errgroup.Group, data []byte, contentType string) (<-chan string, error) {
	if !supportedContentTypes[contentType] {
		return nil, errs.Validation("unsupported file type: %s", contentType)
	}

	out := make(chan string, 32)

	g.Go(func() error {
		defer close(out)

		res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
		if err != nil {
			return errs.Validation("extract %s document: %v", contentType, err)
		}
		if strings.TrimSpace(res.Body) == "" {
			return errs.Validation("document has no extractable text")
		}

		for _, section := range splitSections(res.Body) {
			select {
			case out <- section:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out, nil
}

// splitSections breaks extracted text on blank lines into ordered sections
// with no trailing newlines.
func splitSections(body string) []string {
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)
