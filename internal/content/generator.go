package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/llm"
	"github.com/jonathan/recruit-engine/internal/prompts"
	"github.com/jonathan/recruit-engine/internal/schemas"
)

// GenerateRequest is the context handed to a Generator.
type GenerateRequest struct {
	Theme *db.ContentTheme
	// Seed is plain text; may be empty.
	Seed string
	// Previous is the draft being replaced; empty on first generation.
	Previous string
}

// Generator drafts post text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratedPost is the JSON document the model returns.
type GeneratedPost struct {
	Post     string   `json:"post"`
	Hashtags []string `json:"hashtags"`
}

// Text renders the post followed by its hashtags on one line.
func (p GeneratedPost) Text() string {
	post := strings.TrimSpace(p.Post)
	if len(p.Hashtags) == 0 {
		return post
	}
	tags := make([]string, 0, len(p.Hashtags))
	for _, tag := range p.Hashtags {
		tags = append(tags, "#"+tag)
	}
	return post + "\n\n" + strings.Join(tags, " ")
}

// LLMGenerator drafts posts with a language model.
type LLMGenerator struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMGenerator creates a Generator backed by client.
func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client, tier: llm.TierStandard}
}

// Generate renders the draft or regenerate prompt, calls the model and
// validates its answer before using it.
func (g *LLMGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	data := map[string]string{
		"ThemeName":        "General hiring",
		"ThemeDescription": "",
		"Tone":             "professional",
		"Seed":             req.Seed,
	}
	if req.Theme != nil {
		data["ThemeName"] = req.Theme.Name
		data["ThemeDescription"] = req.Theme.Description
		if req.Theme.Tone != "" {
			data["Tone"] = req.Theme.Tone
		}
	}

	key := prompts.KeyDraftPost
	if req.Previous != "" {
		key = prompts.KeyRegeneratePost
		data["Previous"] = req.Previous
	}

	prompt, err := prompts.Render(prompts.Content, key, data)
	if err != nil {
		return "", err
	}

	raw, err := g.client.GenerateJSON(ctx, prompt, g.tier)
	if err != nil {
		return "", err
	}
	if err := schemas.ValidateGeneratedPost(raw); err != nil {
		return "", fmt.Errorf("model returned an invalid post: %w", err)
	}

	var post GeneratedPost
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		return "", fmt.Errorf("failed to parse generated post: %w", err)
	}
	return post.Text(), nil
}
