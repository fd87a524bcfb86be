package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-2.0-flash"

var ErrMissingAPIKey = errors.New("GOOGLE_GEMINI_KEY is not set")

// LLMService answers single prompts with a Gemini model. No chat session or
// history is sent to the provider.
type LLMService struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

var _ Generator = (*LLMService)(nil)

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logger.Info("Gemini client initialized", zap.String("model", modelName))

	return &LLMService{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (s *LLMService) ModelName() string {
	return s.modelName
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

// Generate sends prompt as one user turn and returns the concatenated text
// parts of the first candidate. An empty string means the model produced no
// text.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates/parts")
		return "", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("Skipping non-text Gemini response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return responseText.String(), nil
}
