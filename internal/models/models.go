// Package models describes the language models a session can fall back across and
// parses the user's prioritized model list.
package models

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Provider identifies the backend that serves a model.
type Provider string

const (
	ProviderAWS        Provider = "aws"
	ProviderOpenRouter Provider = "openrouter"
)

// DefaultModel is used when no model list is configured and when a model
// identifier cannot be resolved.
const DefaultModel = "moonshotai/kimi-k2:free"

// Model is an immutable entry of the fallback list. Name is its identity.
type Model struct {
	Name        string   `json:"name"`
	Provider    Provider `json:"provider"`
	DisplayName string   `json:"displayName"`
}

// ID returns the provider-specific model identifier, or DefaultModel when empty.
func (m Model) ID() string {
	if strings.TrimSpace(m.Name) == "" {
		return DefaultModel
	}
	return m.Name
}

func (m Model) String() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Name
}

var providerMappings = map[string]Provider{
	"us.anthropic.claude-3-7-sonnet-20250219-v1:0": ProviderAWS,
	"anthropic.claude-3-5-sonnet-20241022-v2:0":    ProviderAWS,
	"anthropic.claude-3-haiku-20240307-v1:0":       ProviderAWS,

	"anthropic/claude-3.7-sonnet:beta":          ProviderOpenRouter,
	"anthropic/claude-3-5-sonnet":               ProviderOpenRouter,
	"google/gemini-2.0-flash-exp:free":          ProviderOpenRouter,
	"deepseek/deepseek-r1-0528:free":            ProviderOpenRouter,
	"z-ai/glm-4.5-air:free":                     ProviderOpenRouter,
	"deepseek/deepseek-r1-0528-qwen3-8b:free":   ProviderOpenRouter,
	"qwen/qwen3-235b-a22b:free":                 ProviderOpenRouter,
	"moonshotai/kimi-vl-a3b-thinking:free":      ProviderOpenRouter,
	"qwen/qwen3-30b-a3b:free":                   ProviderOpenRouter,
	"moonshotai/kimi-k2:free":                   ProviderOpenRouter,
	"thudm/glm-z1-32b:free":                     ProviderOpenRouter,
	"arliai/qwq-32b-arliai-rpr-v1:free":         ProviderOpenRouter,
	"qwen/qwq-32b:free":                         ProviderOpenRouter,
	"qwen/qwen3-coder:free":                     ProviderOpenRouter,
}

var displayNames = map[string]string{
	"moonshotai/kimi-k2:free":                      "Kimi K2 (Free) - Default OpenRouter",
	"us.anthropic.claude-3-7-sonnet-20250219-v1:0": "Claude 3.7 Sonnet (AWS Bedrock) - Default AWS",
	"anthropic/claude-3.7-sonnet:beta":             "Claude 3.7 Sonnet (OpenRouter)",
	"google/gemini-2.0-flash-exp:free":             "Gemini 2.0 Flash (Free)",
	"deepseek/deepseek-r1-0528:free":               "DeepSeek R1 (Free)",
	"z-ai/glm-4.5-air:free":                        "GLM-4.5 Air (Free)",
	"deepseek/deepseek-r1-0528-qwen3-8b:free":      "DeepSeek R1 Qwen3-8B (Free)",
	"qwen/qwen3-235b-a22b:free":                    "Qwen3-235B (Free)",
	"moonshotai/kimi-vl-a3b-thinking:free":         "Kimi VL A3B Thinking (Free)",
	"qwen/qwen3-30b-a3b:free":                      "Qwen3-30B (Free)",
	"thudm/glm-z1-32b:free":                        "GLM-Z1 32B (Free)",
	"arliai/qwq-32b-arliai-rpr-v1:free":            "QwQ 32B ArliAI (Free)",
	"qwen/qwq-32b:free":                            "QwQ 32B (Free)",
	"qwen/qwen3-coder:free":                        "Qwen3 Coder (Free)",
}

// New builds a Model for name, inferring its provider and display name.
// Unknown identifiers are served by OpenRouter.
func New(name string) Model {
	name = strings.TrimSpace(name)
	provider, ok := providerMappings[name]
	if !ok {
		provider = ProviderOpenRouter
	}
	return Model{
		Name:        name,
		Provider:    provider,
		DisplayName: DisplayName(name),
	}
}

// DisplayName returns a human friendly name for the identifier.
func DisplayName(name string) string {
	if dn, ok := displayNames[name]; ok {
		return dn
	}
	return name
}

// Family groups a model identifier for access guidance messages.
func Family(name string) string {
	switch {
	case strings.Contains(name, "claude-sonnet-4"), strings.Contains(name, "claude-opus-4"):
		return "Claude 4 (Latest)"
	case strings.Contains(name, "claude-3-7"), strings.Contains(name, "claude-3-5"):
		return "Claude 3.5/3.7"
	case strings.Contains(name, "claude-3"):
		return "Claude 3"
	case strings.Contains(name, "claude"):
		return "Claude"
	}
	return "Unknown Model Family"
}

// Selector holds the prioritized model list parsed from a comma separated string.
type Selector struct {
	models []Model
}

// NewSelector parses modelList. An empty list selects only DefaultModel so that
// providers are never mixed by default.
func NewSelector(modelList string) *Selector {
	return &Selector{models: ParseModels(modelList)}
}

// ParseModels splits a comma separated list into models, skipping empty entries.
func ParseModels(modelList string) []Model {
	if strings.TrimSpace(modelList) == "" {
		return []Model{New(DefaultModel)}
	}

	var out []Model
	for _, part := range strings.Split(modelList, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, New(part))
	}
	if len(out) == 0 {
		return []Model{New(DefaultModel)}
	}
	return out
}

// All returns the models in priority order.
func (s *Selector) All() []Model {
	out := make([]Model, len(s.models))
	copy(out, s.models)
	return out
}

// ByProvider returns the models served by p, in priority order.
func (s *Selector) ByProvider(p Provider) []Model {
	var out []Model
	for _, m := range s.models {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}

// ProvidersNeeded lists each provider used by the list once, in first-use order.
func (s *Selector) ProvidersNeeded() []Provider {
	seen := make(map[Provider]bool)
	var out []Provider
	for _, m := range s.models {
		if !seen[m.Provider] {
			seen[m.Provider] = true
			out = append(out, m.Provider)
		}
	}
	return out
}

// LogPriority writes the priority list to the log.
func (s *Selector) LogPriority() {
	log.Infof("Model priority list (%d models):", len(s.models))
	for i, m := range s.models {
		log.Infof("  %d. %s (%s)", i+1, m.DisplayName, m.Provider)
	}
}
