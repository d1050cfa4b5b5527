package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/search/kind"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed text query length.
	MaxQueryLength = 4096
	// MaxImageSize is the maximum accepted image upload in bytes.
	MaxImageSize = 10 << 20
	DefaultTopK  = 20
	MaxTopK      = 100
)

// EmptyQueryMessage is returned to callers that submit a blank text query.
const EmptyQueryMessage = "Please enter a search query"

// Query is a validated search query: either text or image bytes, plus top_k.
type Query struct {
	kind     kind.Kind
	text     string
	image    []byte
	filename string
	topK     int
}

// NewText validates a text query. Blank text fails with domain.ErrEncoding.
func NewText(text string, topK int) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: %s", domain.ErrEncoding, EmptyQueryMessage)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	return Query{kind: kind.Text, text: text, topK: clampTopK(topK)}, nil
}

// NewImage validates an image query. filename is optional and only used for the query echo.
func NewImage(data []byte, filename string, topK int) (Query, error) {
	if len(data) == 0 {
		return Query{}, fmt.Errorf("%w: image is empty", domain.ErrEncoding)
	}
	if len(data) > MaxImageSize {
		return Query{}, fmt.Errorf("%w: image too large (max %d bytes)", domain.ErrInvalidRequest, MaxImageSize)
	}
	return Query{kind: kind.Image, image: data, filename: filename, topK: clampTopK(topK)}, nil
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Kind returns the query modality.
func (q *Query) Kind() kind.Kind { return q.kind }

// Text returns the trimmed text query (empty for image queries).
func (q *Query) Text() string { return q.text }

// Image returns the raw image bytes (nil for text queries).
func (q *Query) Image() []byte { return q.image }

// Filename returns the uploaded file name, if any.
func (q *Query) Filename() string { return q.filename }

// TopK returns the number of results per section.
func (q *Query) TopK() int { return q.topK }

// Echo returns the human-readable form of the query shown back to the caller.
func (q *Query) Echo() string {
	if q.kind == kind.Text {
		return q.text
	}
	if q.filename != "" {
		return "[Image: " + q.filename + "]"
	}
	return "[uploaded image]"
}
