package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/auth"
	"github.com/bookbotinsight/bookbot/internal/core"
	"github.com/bookbotinsight/bookbot/internal/pdf"
	"github.com/bookbotinsight/bookbot/internal/store"
	"github.com/bookbotinsight/bookbot/internal/utils"
)

const (
	msgSessionExpired = "Your session has expired due to inactivity. Please login again."
	msgMissingAPIKey  = "Google Gemini API key not found. Set GOOGLE_GEMINI_KEY in environment variables."
)

type APIHandler struct {
	accounts  *core.AccountService
	chat      *core.ChatService
	documents *core.DocumentService
	sessions  *core.SessionManager
	tokens    *auth.TokenIssuer
	logger    *zap.Logger
	maxUpload int64
}

type HandlerDeps struct {
	Accounts       *core.AccountService
	Chat           *core.ChatService
	Documents      *core.DocumentService
	Sessions       *core.SessionManager
	Tokens         *auth.TokenIssuer
	Logger         *zap.Logger
	MaxUploadBytes int64
}

func NewAPIHandler(deps HandlerDeps) *APIHandler {
	return &APIHandler{
		accounts:  deps.Accounts,
		chat:      deps.Chat,
		documents: deps.Documents,
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		logger:    deps.Logger,
		maxUpload: deps.MaxUploadBytes,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError translates a service error into a status code and the
// message shown to the user. Unexpected errors are logged and reported
// generically.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *utils.ValidationError
		se *store.StorageError
		me *core.ModelError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered. Please use a different email.")
	case errors.Is(err, store.ErrUnknownEmail):
		writeError(w, http.StatusUnauthorized, "Email not found. Please sign up first.")
	case errors.Is(err, store.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "Incorrect password. Please try again.")
	case errors.Is(err, core.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, msgSessionExpired)
	case errors.Is(err, core.ErrSessionEnded):
		writeError(w, http.StatusUnauthorized, "Please login first")
	case errors.Is(err, core.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, "No text extracted from uploaded PDFs.")
	case errors.Is(err, core.ErrMissingAPIKey):
		writeError(w, http.StatusServiceUnavailable, msgMissingAPIKey)
	case errors.Is(err, core.ErrModelNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Gemini model is not initialized.")
	case errors.As(err, &me), errors.Is(err, core.ErrEmptyResponse):
		writeError(w, http.StatusBadGateway, "Failed to generate a response.")
	case errors.As(err, &se):
		h.logger.Error("User database unavailable",
			zap.String("path", r.URL.Path),
			zap.String("op", se.Op),
			zap.Error(se.Err))
		writeError(w, http.StatusInternalServerError, "Failed to access the user database.")
	default:
		h.logger.Error("Unhandled request error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type UserResponse struct {
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	CreatedAt store.Timestamp `json:"created_at"`
	LastLogin store.Timestamp `json:"last_login"`
}

func userResponse(rec *store.UserRecord) UserResponse {
	return UserResponse{
		Username:  rec.Username,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		LastLogin: rec.LastLogin,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.accounts.Signup(req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created successfully! Please login.",
		"user":    userResponse(rec),
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := sessionFrom(r.Context())
	rec, next, err := h.accounts.Login(sess, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.setSessionCookie(w, next); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	writeJSON(w, http.StatusOK, userResponse(rec))
}

type PasswordStrengthRequest struct {
	Password string `json:"password"`
}

func (h *APIHandler) PasswordStrengthHandler(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	strong, msg := h.accounts.PasswordStrength(req.Password)
	writeJSON(w, http.StatusOK, map[string]any{"strong": strong, "message": msg})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	email := sess.Identity().Email
	h.sessions.Logout(sess)
	h.logger.Info("User logged out", zap.String("email", email), zap.String("session_id", sess.ID))
	w.WriteHeader(http.StatusNoContent)
}

type AccountResponse struct {
	UserResponse
	HistoryLength int  `json:"history_length"`
	HasDocuments  bool `json:"has_documents"`
}

func (h *APIHandler) AccountHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	rec, err := h.accounts.Account(sess.Identity().Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		UserResponse:  userResponse(rec),
		HistoryLength: len(sess.History()),
		HasDocuments:  sess.PDFText() != "",
	})
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (h *APIHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := sessionFrom(r.Context())
	err := h.accounts.ChangePassword(sess.Identity().Email, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully!"})
}

type DocumentsResponse struct {
	Characters int      `json:"characters"`
	Pages      int      `json:"pages"`
	Errors     []string `json:"errors"`
}

func (h *APIHandler) UploadDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Uploaded files are too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var docs []pdf.Document
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		docs = append(docs, pdf.Document{Name: fh.Filename, Data: data})
	}

	sess := sessionFrom(r.Context())
	res, err := h.documents.Process(sess, docs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := DocumentsResponse{
		Characters: len([]rune(res.Text)),
		Pages:      res.Pages,
		Errors:     make([]string, 0, len(res.Errors)),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

type QuestionRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := sessionFrom(r.Context())
	turn, err := h.chat.Ask(r.Context(), sess, req.Question)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"history": sess.History()})
}
