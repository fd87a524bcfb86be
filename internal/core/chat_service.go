package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/utils"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	ErrModelNotConfigured = errors.New("Gemini model is not initialized")
	ErrEmptyResponse      = errors.New("model returned an empty response")
)

// ModelError wraps a failed call to the model provider.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("error generating model response: %v", e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

const promptTemplate = `
You are an AI assistant designed to answer user questions. If the information is not found in the provided context, provide a general answer based on your knowledge.

PDF Content:
%s

User Question:
%s
`

// BuildPrompt embeds the whole document text and the literal question.
func BuildPrompt(pdfText, question string) string {
	return fmt.Sprintf(promptTemplate, pdfText, question)
}

type ChatService struct {
	model       Generator
	unavailable error
	sessions    *SessionManager
	logger      *zap.Logger
}

// NewChatService accepts a nil model; questions then fail with
// ErrModelNotConfigured instead of preventing startup.
func NewChatService(model Generator, sessions *SessionManager, logger *zap.Logger) *ChatService {
	return &ChatService{
		model:    model,
		sessions: sessions,
		logger:   logger,
	}
}

// SetUnavailableReason records why no model is configured so that Ask can
// report it alongside ErrModelNotConfigured.
func (s *ChatService) SetUnavailableReason(reason error) {
	s.unavailable = reason
}

// Ask answers question against the session's current documents. Only a
// successful, non-empty answer is appended to the chat history.
func (s *ChatService) Ask(ctx context.Context, sess *Session, question string) (ChatTurn, error) {
	s.sessions.Touch(sess)

	if strings.TrimSpace(question) == "" {
		return ChatTurn{}, utils.NewValidationError("question", "Please enter a question")
	}
	if s.model == nil {
		if s.unavailable != nil {
			return ChatTurn{}, fmt.Errorf("%w: %w", ErrModelNotConfigured, s.unavailable)
		}
		return ChatTurn{}, ErrModelNotConfigured
	}

	gen := sess.currentGeneration()
	prompt := BuildPrompt(sess.PDFText(), question)

	answer, err := s.model.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("Model request failed", zap.String("session_id", sess.ID), zap.Error(err))
		return ChatTurn{}, &ModelError{Err: err}
	}
	if answer == "" {
		s.logger.Warn("Model returned no text", zap.String("session_id", sess.ID))
		return ChatTurn{}, ErrEmptyResponse
	}

	turn := ChatTurn{User: question, Bot: answer}
	n, ok := sess.appendTurnIfCurrent(gen, turn)
	if !ok {
		s.logger.Info("Dropping answer for a session that ended mid-request", zap.String("session_id", sess.ID))
		return ChatTurn{}, ErrSessionEnded
	}
	s.logger.Debug("Question answered",
		zap.String("session_id", sess.ID),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("history_len", n))
	return turn, nil
}
