package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/pdf"
	"github.com/bookbotinsight/bookbot/internal/utils"
)

var ErrNoText = errors.New("no text extracted from uploaded PDFs")

type DocumentService struct {
	sessions *SessionManager
	logger   *zap.Logger
}

func NewDocumentService(sessions *SessionManager, logger *zap.Logger) *DocumentService {
	return &DocumentService{sessions: sessions, logger: logger}
}

// Process extracts the text of docs and makes it the session's document
// corpus, replacing whatever was there. Documents that fail to parse are
// reported in the result and skipped. When nothing at all could be
// extracted the previous corpus is kept and ErrNoText is returned.
func (s *DocumentService) Process(sess *Session, docs []pdf.Document) (pdf.Result, error) {
	s.sessions.Touch(sess)

	if len(docs) == 0 {
		return pdf.Result{}, utils.NewValidationError("files", "Please upload at least one PDF file.")
	}
	for _, doc := range docs {
		if !pdf.IsPDFName(doc.Name) {
			return pdf.Result{}, utils.NewValidationError("files", fmt.Sprintf("%s is not a PDF file.", doc.Name))
		}
	}

	res := pdf.Extract(docs)
	for _, extractErr := range res.Errors {
		s.logger.Warn("Skipping unreadable PDF",
			zap.String("session_id", sess.ID),
			zap.String("file", extractErr.Name),
			zap.Error(extractErr.Err))
	}

	if res.Text == "" {
		return res, ErrNoText
	}

	sess.SetPDFText(res.Text)
	s.logger.Info("Documents processed",
		zap.String("session_id", sess.ID),
		zap.Int("files", len(docs)),
		zap.Int("failed", len(res.Errors)),
		zap.Int("pages", res.Pages),
		zap.Int("characters", len(res.Text)))
	return res, nil
}
