// Package gateway adapts the pipeline to the Gemini completion API: it
// uploads document sources, assembles one ordered content list, and returns
// the model's raw answer text.
package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/logger"
)

// AIGateway sends one completion request per signal.
type AIGateway interface {
	Ask(ctx context.Context, question string, sources []*dto.NormalizedSource) (string, error)
}

type geminiGateway struct {
	cfg            *config.Config
	logger         *logger.Logger
	client         *genai.Client
	requestLimiter *rate.Limiter
}

// NewGeminiGateway creates a new AIGateway backed by the Gemini API.
func NewGeminiGateway(cfg *config.Config, log *logger.Logger, client *genai.Client) AIGateway {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	return &geminiGateway{
		cfg:            cfg,
		logger:         log,
		client:         client,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

// Ask builds the content list (question first, then one part per source)
// and runs the completion. A source whose upload fails is skipped; the call
// only fails when no prompt is configured or no content survives.
func (g *geminiGateway) Ask(ctx context.Context, question string, sources []*dto.NormalizedSource) (string, error) {
	systemPrompt := strings.TrimSpace(g.cfg.Prompt.System)
	if systemPrompt == "" {
		return "", fmt.Errorf("missing system prompt in configuration")
	}

	var parts []*genai.Part
	if question != "" {
		parts = append(parts, genai.NewPartFromText(question))
	}

	for _, src := range sources {
		part, err := g.sourcePart(ctx, src)
		if err != nil {
			g.logger.Error("failed to prepare source, skipping",
				logger.StringField("origin", src.Origin), logger.ErrorField(err))
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no content to send: no question and no usable sources")
	}

	if err := g.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for request limit: %w", err)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Gemini.Model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	var answer strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					answer.WriteString(part.Text)
				}
			}
			if answer.Len() > 0 {
				break
			}
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("model returned no text")
	}

	g.logger.Info("received model answer",
		logger.IntField("parts", len(parts)),
		logger.IntField("answer_len", answer.Len()),
	)
	return answer.String(), nil
}

// sourcePart uploads document sources to the file store and wraps inline
// ones in a tagged text part.
func (g *geminiGateway) sourcePart(ctx context.Context, src *dto.NormalizedSource) (*genai.Part, error) {
	if !src.IsDocument() {
		return genai.NewPartFromText(fmt.Sprintf("[SOURCE: %s]\n%s", src.Origin, src.InlineText)), nil
	}

	file, err := os.Open(src.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", src.FilePath, err)
	}
	defer file.Close()

	uploaded, err := g.client.Files.Upload(ctx, file, &genai.UploadFileConfig{
		MIMEType: src.MIMEType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload document for %s: %w", src.Origin, err)
	}

	g.logger.Debug("uploaded document",
		logger.StringField("origin", src.Origin),
		logger.StringField("uri", uploaded.URI),
	)
	return genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType), nil
}
