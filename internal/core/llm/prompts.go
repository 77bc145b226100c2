package llm

import (
	"fmt"
	"strings"

	"github.com/cbroglie/mustache"
)

// DefaultAssistantName is substituted into the system instruction
const DefaultAssistantName = "THINK"

// DefaultSystemInstruction is the built-in system instruction template
const DefaultSystemInstruction = `You are a helpful, clever, and friendly AI assistant named {{assistant_name}}.
- Answer questions clearly and concisely.
- Use Markdown to format your responses effectively (headings, lists, code blocks).
- When writing code, explain the logic briefly.
- Maintain a helpful and professional tone.
`

// RenderSystemInstruction renders tmpl (or the built-in template when empty)
// for the named assistant
func RenderSystemInstruction(tmpl, assistantName string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultSystemInstruction
	}
	if assistantName == "" {
		assistantName = DefaultAssistantName
	}

	out, err := mustache.Render(tmpl, map[string]string{
		"assistant_name": assistantName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render system instruction: %w", err)
	}
	return out, nil
}
