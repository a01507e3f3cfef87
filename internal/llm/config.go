// Package llm wraps the Gemini API behind a small client interface used to
// draft LinkedIn posts.
package llm

// ModelTier selects a model by capability.
type ModelTier string

const (
	// TierLite is for short rewrites and hashtag suggestions
	TierLite ModelTier = "lite"
	// TierStandard is for drafting full posts
	TierStandard ModelTier = "standard"
)

// DefaultTemperature keeps drafts varied enough that a regeneration is
// noticeably different from the previous attempt.
const DefaultTemperature float32 = 0.8

// Config holds model selection and sampling settings.
type Config struct {
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the Gemini models used in production.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature:     DefaultTemperature,
		MaxOutputTokens: 2048,
	}
}

// GetModel returns the model for tier, falling back to standard, then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c using model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := &Config{
		Models:          make(map[ModelTier]string, len(c.Models)+1),
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return next
}
