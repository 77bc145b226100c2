package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultImageURLBase is the key-less image service used by the url backend
const DefaultImageURLBase = "https://image.pollinations.ai/prompt/"

// URLImageBackend builds fetchable image URLs. The service renders the image
// when the URL is first requested, so Generate makes no network call.
type URLImageBackend struct {
	base string
}

// NewURLImageBackend creates a url backend rooted at base
func NewURLImageBackend(base string) *URLImageBackend {
	if base == "" {
		base = DefaultImageURLBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &URLImageBackend{base: base}
}

// Name returns the backend name
func (b *URLImageBackend) Name() string {
	return "url"
}

// Generate returns the URL of a 1024x1024 rendering of prompt
func (b *URLImageBackend) Generate(ctx context.Context, prompt string) (ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ImageRef{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return ImageRef{}, ErrEmptyPrompt
	}

	u, err := url.Parse(b.base + url.PathEscape(prompt))
	if err != nil {
		return ImageRef{}, fmt.Errorf("failed to build image url: %w", err)
	}
	q := u.Query()
	q.Set("width", "1024")
	q.Set("height", "1024")
	q.Set("nologo", "true")
	u.RawQuery = q.Encode()

	return ImageRef{Source: u.String(), MIMEType: "image/jpeg"}, nil
}
