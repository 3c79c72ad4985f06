// Package gen wraps the Gemini API for the three generated assets: poem
// text, mural images, and narration audio.
package gen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Model names per asset kind.
const (
	PoemModel   = "gemini-3-flash-preview"
	MuralModel  = "gemini-2.5-flash-image"
	SpeechModel = "gemini-2.5-flash-preview-tts"
)

// VoiceName is the prebuilt narration voice.
const VoiceName = "Kore"

// Fallbacks used when synthesis fails. Poem and mural degrade silently;
// narration errors propagate to the caller instead.
const (
	FallbackPoem     = "سكت الشعر في حضرة الجمال التونسي... حاول لاحقاً."
	EmptyPoem        = "عذراً، لم نتمكن من نظم الشعر حالياً."
	FallbackMuralURL = "https://www.transparenttextures.com/patterns/stardust.png"
)

// ErrNoAudio is returned when the speech model responds without audio data.
var ErrNoAudio = errors.New("no audio data returned")

// Client calls the Gemini API.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// PoemPrompt builds the poem synthesis prompt for a location and poet.
func PoemPrompt(locationName, poetName string) string {
	return fmt.Sprintf("اكتب قصيدة قصيرة (4-6 أبيات) عن %s في مدينة نابل التونسية، بأسلوب الشاعر التونسي %s. اجعلها بليغة ومعبرة عن تاريخ المكان وجمال تونس الخضراء وروح الوطن القبلي.", locationName, poetName)
}

// MuralPrompt builds the mural image prompt.
func MuralPrompt(poemText, locationName string) string {
	return fmt.Sprintf(`Create a high-contrast, black and white artistic mural illustration representing the soul of Nabeul, Tunisia. The theme is: %q. Incorporate elements of Arabic calligraphy, Mediterranean waves, and traditional pottery motifs. Style: High contrast photocopy, grainy woodcut, brutalist art. No colors, only black and white ink style. Inspired by this poem: %s`, locationName, poemText)
}

// NarrationPrompt wraps poem text with the recitation instruction.
func NarrationPrompt(text string) string {
	return "اقرأ هذا الشعر ببطء وتأنّي وبصوت جهوري شاعري تظهر فيه نبرة الاعتزاز والجمال: " + text
}

// Poem synthesizes a short poem for the location in the poet's style. Never
// fails: synthesis errors degrade to a static verse.
func (c *Client) Poem(ctx context.Context, locationName, poetName string) string {
	contents := []*genai.Content{
		genai.NewContentFromText(PoemPrompt(locationName, poetName), genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, PoemModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.8),
		TopP:        genai.Ptr[float32](0.9),
	})
	if err != nil {
		c.logger.Warn("poem synthesis failed", slog.String("error", err.Error()))
		return FallbackPoem
	}
	if text := resp.Text(); text != "" {
		return text
	}
	return EmptyPoem
}

// Mural synthesizes a 16:9 black-and-white mural image and returns it as a
// PNG data URL. Degrades to a static texture URL on failure.
func (c *Client) Mural(ctx context.Context, poemText, locationName string) string {
	contents := []*genai.Content{
		genai.NewContentFromText(MuralPrompt(poemText, locationName), genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, MuralModel, contents, &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "16:9",
		},
	})
	if err != nil {
		c.logger.Warn("mural synthesis failed", slog.String("error", err.Error()))
		return FallbackMuralURL
	}

	if data := inlineData(resp); len(data) > 0 {
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	}
	c.logger.Warn("mural synthesis returned no image data")
	return FallbackMuralURL
}

// Narrate converts poem text to speech and returns the base64 PCM payload
// (24kHz mono s16le). Unlike the other assets, narration errors propagate.
func (c *Client) Narrate(ctx context.Context, text string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(NarrationPrompt(text), genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, SpeechModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: VoiceName,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to narrate: %w", err)
	}

	data := inlineData(resp)
	if len(data) == 0 {
		return "", ErrNoAudio
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// inlineData returns the first inline blob in the response, or nil.
func inlineData(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
