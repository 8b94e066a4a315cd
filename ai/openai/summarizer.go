// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client      llms.Model
	inputChars  int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// newSummarizer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.SummaryHost),
		openai.WithToken(tokenOrNone(config.SummaryToken)),
		openai.WithModel(config.SummaryModel),
	)
	if err != nil {
		return nil, err
	}

	return newSummarizerWithModel(client, config), nil
}

func newSummarizerWithModel(client llms.Model, config *ai.Config) *Summarizer {
	return &Summarizer{
		client:      client,
		inputChars:  config.SummaryInputChars,
		maxTokens:   config.SummaryMaxTokens,
		temperature: config.SummaryTemperature,
		logger:      slog.Default().With("component", "openai-summarizer"),
	}
}

// NewSummarizer creates a new summarizer using the provided configuration.
//
// Returns ai.Summarizer interface to enforce abstraction.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize asks the model for a summary of the leading part of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptySummary
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSummaryPrompt(text, s.inputChars)),
			},
		},
	}

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithMaxTokens(s.maxTokens),
		llms.WithTemperature(s.temperature),
	)
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		s.logger.Debug("no choices returned from model")
		return "", ai.ErrEmptySummary
	}

	summary := strings.TrimSpace(response.Choices[0].Content)
	if isGenericSummary(summary) {
		s.logger.Warn("model returned a generic summary")
		return "", ai.ErrEmptySummary
	}

	s.logger.Debug("generated summary", "input_length", len(text), "summary_length", len(summary))
	return summary, nil
}
