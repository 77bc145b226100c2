package llm

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModel is the text model used for chat turns
const DefaultModel = "gemini-2.5-flash"

// Chat is one live conversation context on the remote endpoint
type Chat interface {
	Stream(ctx context.Context, text string) iter.Seq2[string, error]
}

// ChatStarter opens conversation contexts seeded with history
type ChatStarter interface {
	Start(ctx context.Context, systemInstruction string, history []models.Message) (Chat, error)
}

// Gemini is the Gateway backed by the Gemini API
type Gemini struct {
	starter           ChatStarter
	images            ImageBackend
	systemInstruction string
	logger            zerolog.Logger

	mu   sync.Mutex
	chat Chat
}

// GeminiOption configures a Gemini gateway
type GeminiOption func(*Gemini)

// WithGatewayLogger sets the logger for generation failures
func WithGatewayLogger(logger zerolog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = logger }
}

// NewGemini creates a gateway from its parts. A nil starter or image backend
// yields ErrNotConfigured for the corresponding calls.
func NewGemini(starter ChatStarter, images ImageBackend, systemInstruction string, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		starter:           starter,
		images:            images,
		systemInstruction: systemInstruction,
		logger:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the backend name
func (g *Gemini) Name() string {
	return "gemini"
}

// StartContext replaces the current context with one seeded from history
func (g *Gemini) StartContext(ctx context.Context, history []models.Message) error {
	if g.starter == nil {
		g.mu.Lock()
		g.chat = nil
		g.mu.Unlock()
		return textError(ErrNotConfigured)
	}

	chat, err := g.starter.Start(ctx, g.systemInstruction, ContextHistory(history))
	if err != nil {
		g.mu.Lock()
		g.chat = nil
		g.mu.Unlock()
		return textError(fmt.Errorf("failed to start chat: %w", err))
	}

	g.mu.Lock()
	g.chat = chat
	g.mu.Unlock()
	return nil
}

// SendTextTurn streams the reply to text in the current context
func (g *Gemini) SendTextTurn(ctx context.Context, text string) iter.Seq2[string, error] {
	g.mu.Lock()
	chat := g.chat
	g.mu.Unlock()

	if chat == nil {
		if g.starter == nil {
			return failed(textError(ErrNotConfigured))
		}
		return failed(textError(ErrNoContext))
	}

	return func(yield func(string, error) bool) {
		for fragment, err := range chat.Stream(ctx, text) {
			if err != nil {
				g.logger.Error().Err(err).Msg("text generation failed")
				yield("", textError(err))
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// GenerateImage delegates to the configured image backend
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) (ImageRef, error) {
	if g.images == nil {
		return ImageRef{}, imageError(ErrNotConfigured)
	}
	if prompt == "" {
		return ImageRef{}, imageError(ErrEmptyPrompt)
	}

	ref, err := g.images.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error().Err(err).Str("backend", g.images.Name()).Msg("image generation failed")
		return ImageRef{}, imageError(err)
	}
	if ref.Source == "" {
		return ImageRef{}, imageError(ErrEmptyImage)
	}
	return ref, nil
}

// GenAIStarter opens chats through the genai SDK
type GenAIStarter struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a Gemini API client for apiKey
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGenAIStarter creates a ChatStarter for model
func NewGenAIStarter(client *genai.Client, model string) *GenAIStarter {
	if model == "" {
		model = DefaultModel
	}
	return &GenAIStarter{client: client, model: model}
}

// Start creates a chat seeded with history
func (s *GenAIStarter) Start(ctx context.Context, systemInstruction string, history []models.Message) (Chat, error) {
	var config *genai.GenerateContentConfig
	if systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}

	chat, err := s.client.Chats.Create(ctx, s.model, config, toContents(history))
	if err != nil {
		return nil, err
	}
	return &genaiChat{chat: chat}, nil
}

func toContents(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}

type genaiChat struct {
	chat *genai.Chat
}

func (c *genaiChat) Stream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}
