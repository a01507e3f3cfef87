// Package prompts holds the LLM prompt templates. Templates live in JSON
// files embedded at compile time, keyed by name.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Content is the prompt file used for post drafting.
const Content = "content.json"

// Prompt keys in Content.
const (
	KeyDraftPost      = "draft-post"
	KeyRegeneratePost = "regenerate-post"
)

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z0-9_]+)\}\}`)

// Get retrieves a prompt by filename (e.g. "content.json") and key.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// Format replaces {{.Key}} placeholders with values from data. Placeholders
// without a value are left in place.
func Format(template string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := data[key]; ok {
			return v
		}
		return m
	})
}

// Render looks up a prompt and fills it. Every placeholder must have a value.
func Render(filename, key string, data map[string]string) (string, error) {
	template, err := Get(filename, key)
	if err != nil {
		return "", err
	}

	var missing []string
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if _, ok := data[m[1]]; !ok {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s is missing values for %s", filename, key, strings.Join(missing, ", "))
	}
	return Format(template, data), nil
}

func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if prompts, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return prompts, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()

	return prompts, nil
}

// ClearCache drops parsed files. Tests use it to start cold.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}
