package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultImageModel is the Imagen model used for /image turns
	DefaultImageModel = "imagen-4.0-generate-001"

	imageMIMEType = "image/jpeg"
)

// ImagenBackend generates images with Imagen and returns them inline as data
// URIs
type ImagenBackend struct {
	client *genai.Client
	model  string
}

// NewImagenBackend creates an Imagen backend for model
func NewImagenBackend(client *genai.Client, model string) *ImagenBackend {
	if model == "" {
		model = DefaultImageModel
	}
	return &ImagenBackend{client: client, model: model}
}

// Name returns the backend name
func (b *ImagenBackend) Name() string {
	return "imagen"
}

// Generate requests exactly one image for prompt
func (b *ImagenBackend) Generate(ctx context.Context, prompt string) (ImageRef, error) {
	resp, err := b.client.Models.GenerateImages(ctx, b.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: imageMIMEType,
	})
	if err != nil {
		return ImageRef{}, fmt.Errorf("failed to generate image: %w", err)
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return ImageRef{}, ErrEmptyImage
	}
	img := resp.GeneratedImages[0].Image
	return InlineImage(img.ImageBytes, img.MIMEType)
}

// InlineImage wraps raw image bytes as a data URI reference
func InlineImage(data []byte, mimeType string) (ImageRef, error) {
	if len(data) == 0 {
		return ImageRef{}, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = imageMIMEType
	}
	return ImageRef{
		Source:   fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
		MIMEType: mimeType,
	}, nil
}
