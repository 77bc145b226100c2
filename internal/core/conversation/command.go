package conversation

import "strings"

// ImagePrefix routes a submission to image generation
const ImagePrefix = "/image"

// Kind is the type of a turn
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "text"
}

// Command is a parsed submission
type Command struct {
	Kind   Kind
	Text   string // trimmed submission, stored as the user message
	Prompt string // image description, empty for text turns
}

// Parse classifies trimmed input. Any input starting with /image, in any
// case, is an image request; the rest of it, trimmed, is the description.
func Parse(input string) Command {
	text := strings.TrimSpace(input)
	cmd := Command{Kind: KindText, Text: text}
	if len(text) >= len(ImagePrefix) && strings.EqualFold(text[:len(ImagePrefix)], ImagePrefix) {
		cmd.Kind = KindImage
		cmd.Prompt = strings.TrimSpace(text[len(ImagePrefix):])
	}
	return cmd
}
