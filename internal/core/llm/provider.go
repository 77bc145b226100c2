package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/neilberkman/thinkchat/internal/core/models"
)

// Gateway is the adapter to the remote generation endpoints
type Gateway interface {
	// StartContext replaces the conversation context with one seeded from
	// history. Streaming messages in history are skipped.
	StartContext(ctx context.Context, history []models.Message) error

	// SendTextTurn streams the reply to text. The sequence ends normally on
	// completion; a non-nil error is the final element on failure and earlier
	// fragments stay valid.
	SendTextTurn(ctx context.Context, text string) iter.Seq2[string, error]

	// GenerateImage produces a single embeddable image for prompt
	GenerateImage(ctx context.Context, prompt string) (ImageRef, error)

	// Name returns the backend name (e.g., "gemini")
	Name() string
}

// ImageBackend produces images from prompts. Which one is wired is a
// deployment choice.
type ImageBackend interface {
	Generate(ctx context.Context, prompt string) (ImageRef, error)
	Name() string
}

// ImageRef is something a markdown renderer can embed: a fetchable URL or a
// data URI with the inline bytes
type ImageRef struct {
	Source   string
	MIMEType string
}

// Markdown wraps the reference in a markdown image literal
func (r ImageRef) Markdown() string {
	return fmt.Sprintf("![Generated Image](%s)", r.Source)
}

var (
	// ErrNoContext means SendTextTurn ran before StartContext
	ErrNoContext = errors.New("conversation context not started")

	// ErrNotConfigured means no API key was available
	ErrNotConfigured = errors.New("generation backend not configured")

	// ErrEmptyImage means the service answered without image data
	ErrEmptyImage = errors.New("no image data received")

	// ErrEmptyPrompt means an image was requested without a description
	ErrEmptyPrompt = errors.New("image prompt is empty")
)

// GenerationError wraps any failure of a text or image generation call
type GenerationError struct {
	Op  string // "text" or "image"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func textError(err error) error {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return err
	}
	return &GenerationError{Op: "text", Err: err}
}

func imageError(err error) error {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return err
	}
	return &GenerationError{Op: "image", Err: err}
}

// failed returns a sequence whose only element is err
func failed(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

// ContextHistory filters history down to what may seed a context
func ContextHistory(history []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history))
	for _, m := range history {
		if m.IsStreaming {
			continue
		}
		out = append(out, m)
	}
	return out
}
