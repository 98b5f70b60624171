package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/session"
)

// Handler exposes the account operations over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// HttpResponse is the envelope for errors and message-only replies.
type HttpResponse struct {
	TimeStamp      time.Time `json:"timeStamp"`
	HttpStatusCode int       `json:"httpStatusCode"`
	HttpStatus     string    `json:"httpStatus"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ResetPasswordRequest carries the new password for the authenticated caller.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupInput
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, "signup failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, acc)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, "login failed", err)
		return
	}
	header, err := h.svc.GenerateSessionHeader(acc.Username)
	if err != nil {
		h.fail(w, "session header failed", err)
		return
	}
	w.Header().Set("Authorization", header)
	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), caller); err != nil {
		h.fail(w, "verify email failed", err)
		return
	}
	h.respond(w, http.StatusOK, "email verified")
}

// RequestPasswordReset always answers 200 for a well-formed address.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if err := h.svc.RequestPasswordReset(r.Context(), email); err != nil {
		h.fail(w, "password reset request failed", err)
		return
	}
	h.respond(w, http.StatusOK, "if the address is registered, a reset email has been sent")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.svc.ResetPassword(r.Context(), caller, req.Password); err != nil {
		h.fail(w, "password reset failed", err)
		return
	}
	h.respond(w, http.StatusOK, "password updated")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	acc, err := h.svc.CurrentAccount(r.Context(), caller)
	if err != nil {
		h.fail(w, "current account failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var patch AccountPatch
	if !h.decode(w, r, &patch) {
		return
	}
	acc, err := h.svc.UpdateAccount(r.Context(), caller, patch)
	if err != nil {
		h.fail(w, "update account failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var patch ProfilePatch
	if !h.decode(w, r, &patch) {
		return
	}
	acc, err := h.svc.UpdateProfile(r.Context(), caller, patch)
	if err != nil {
		h.fail(w, "update profile failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, "list accounts failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	acc, err := h.svc.FindByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		h.fail(w, "find account failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := session.CallerFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, newResponse(http.StatusUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, newResponse(http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// fail maps err to a status; internal errors are logged and not described.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Warnw(msg, "err", err)
	} else {
		h.logger.Debugw(msg, "code", Code(err), "err", err)
	}
	h.writeJSON(w, status, newResponse(status, Message(err)))
}

func (h *Handler) respond(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, newResponse(status, msg))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUsernameExists), errors.Is(err, ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newResponse(status int, msg string) HttpResponse {
	text := http.StatusText(status)
	return HttpResponse{
		TimeStamp:      time.Now().UTC(),
		HttpStatusCode: status,
		HttpStatus:     strings.ToUpper(strings.ReplaceAll(text, " ", "_")),
		Reason:         text,
		Message:        msg,
	}
}
