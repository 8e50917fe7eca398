// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/ratelimit"
	"codeberg.org/coursemix/coursemix/internal/services/auth"
	"codeberg.org/coursemix/coursemix/internal/services/codes"
	"codeberg.org/coursemix/coursemix/internal/services/email"
	"codeberg.org/coursemix/coursemix/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for registration, password reset and login.
type AuthHandlers struct {
	users    *auth.Service
	codes    *codes.Manager
	sessions *session.Manager
	mailer   email.Sender
	limiter  ratelimit.Limiter
	codeTTL  time.Duration
}

// NewAuth creates a new AuthHandlers instance. A nil limiter disables throttling.
func NewAuth(users *auth.Service, codeMgr *codes.Manager, sessions *session.Manager, mailer email.Sender, limiter ratelimit.Limiter, codeTTL time.Duration) *AuthHandlers {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if codeTTL <= 0 {
		codeTTL = codes.DefaultTTL
	}
	return &AuthHandlers{
		users:    users,
		codes:    codeMgr,
		sessions: sessions,
		mailer:   mailer,
		limiter:  limiter,
		codeTTL:  codeTTL,
	}
}

// codeMessages maps code validation failures to message IDs per kind.
var codeMessages = map[models.CodeKind]map[error]string{
	models.VerificationCode: {
		codes.ErrMissingInput: "error_code_required",
		codes.ErrInvalidCode:  "error_invalid_code",
		codes.ErrAlreadyUsed:  "error_code_used",
		codes.ErrExpired:      "error_code_expired",
	},
	models.ResetCode: {
		codes.ErrMissingInput: "error_code_required",
		codes.ErrInvalidCode:  "error_invalid_reset_code",
		codes.ErrAlreadyUsed:  "error_reset_code_used",
		codes.ErrExpired:      "error_reset_code_expired",
	},
}

func codeFailure(c echo.Context, kind models.CodeKind, err error) error {
	for target, id := range codeMessages[kind] {
		if errors.Is(err, target) {
			return BadRequest(c, id)
		}
	}
	return InternalServerError(c, "code_validation_failed", err)
}

// SendCodeRequest is the request body for issuing a code.
type SendCodeRequest struct {
	Email      string `json:"email" validate:"required,email"`
	ResendOnly bool   `json:"resendOnly"`
}

func (r *SendCodeRequest) normalize() { r.Email = codes.NormalizeEmail(r.Email) }

func (h *AuthHandlers) bindSendCode(c echo.Context) (*SendCodeRequest, error) {
	var req SendCodeRequest
	if err := bindRequest(c, &req); err != nil {
		if req.Email == "" {
			return nil, BadRequest(c, "error_email_required")
		}
		return nil, BadRequest(c, "error_invalid_email")
	}
	return &req, nil
}

// issueAndSend throttles, issues and emails a code. It writes the failure
// response itself and reports whether the caller should continue.
func (h *AuthHandlers) issueAndSend(c echo.Context, kind models.CodeKind, req *SendCodeRequest, noPendingID string) (bool, error) {
	ctx := c.Request().Context()

	if err := h.limiter.Allow(ctx, string(kind)+":"+req.Email); err != nil {
		return false, Fail(c, http.StatusTooManyRequests, "error_rate_limited")
	}

	record, err := h.codes.Issue(ctx, kind, req.Email, req.ResendOnly)
	if err != nil {
		if errors.Is(err, codes.ErrNoPendingRequest) {
			return false, BadRequest(c, noPendingID)
		}
		return false, InternalServerError(c, "code_issue_failed", err)
	}

	if err := h.mailer.SendCode(ctx, kind, record.Email, record.Code, h.codeTTL); err != nil {
		return false, InternalServerError(c, "code_email_failed", err)
	}
	return true, nil
}

// SendVerification issues a registration code for an unregistered email.
func (h *AuthHandlers) SendVerification(c echo.Context) error {
	req, err := h.bindSendCode(c)
	if req == nil {
		return err
	}

	exists, err := h.users.UserExists(c.Request().Context(), req.Email)
	if err != nil {
		return InternalServerError(c, "user_lookup_failed", err)
	}
	if exists {
		return BadRequest(c, "error_user_exists")
	}

	if ok, err := h.issueAndSend(c, models.VerificationCode, req, "error_no_verification_request"); !ok {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_verification_sent"),
	})
}

// SendResetCode issues a password reset code. The response does not reveal
// whether an account exists.
func (h *AuthHandlers) SendResetCode(c echo.Context) error {
	req, err := h.bindSendCode(c)
	if req == nil {
		return err
	}

	exists, err := h.users.UserExists(c.Request().Context(), req.Email)
	if err != nil {
		return InternalServerError(c, "user_lookup_failed", err)
	}
	if exists {
		if ok, err := h.issueAndSend(c, models.ResetCode, req, "error_no_reset_request"); !ok {
			return err
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_reset_sent"),
	})
}

// VerifyCodeRequest is the request body for checking a code.
type VerifyCodeRequest struct {
	Email string    `json:"email" validate:"required"`
	Code  CodeValue `json:"code" validate:"required"`
}

func (r *VerifyCodeRequest) normalize() { r.Email = codes.NormalizeEmail(r.Email) }

// Verify consumes a registration verification code.
func (h *AuthHandlers) Verify(c echo.Context) error {
	var req VerifyCodeRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_code_required")
	}

	ctx := c.Request().Context()
	record, err := h.codes.ValidateCode(ctx, models.VerificationCode, req.Email, string(req.Code))
	if err != nil {
		return codeFailure(c, models.VerificationCode, err)
	}

	if err := h.codes.ConsumeVerificationCode(ctx, record); err != nil {
		return codeFailure(c, models.VerificationCode, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"message":  message(c, "msg_email_verified"),
		"email":    record.Email,
		"verified": true,
	})
}

// VerifyResetCode checks a reset code and hands out a reset token.
func (h *AuthHandlers) VerifyResetCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_code_required")
	}

	ctx := c.Request().Context()
	exists, err := h.users.UserExists(ctx, req.Email)
	if err != nil {
		return InternalServerError(c, "user_lookup_failed", err)
	}
	if !exists {
		return BadRequest(c, "error_user_not_found")
	}

	record, err := h.codes.ValidateCode(ctx, models.ResetCode, req.Email, string(req.Code))
	if err != nil {
		return codeFailure(c, models.ResetCode, err)
	}

	token, err := h.codes.IssueResetToken(ctx, record)
	if err != nil {
		return codeFailure(c, models.ResetCode, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_reset_code_verified"),
		"email":   record.Email,
		"token":   token,
	})
}

// ResetPasswordRequest is the request body for setting a new password.
type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *ResetPasswordRequest) normalize() {
	r.Email = codes.NormalizeEmail(r.Email)
	r.Token = strings.TrimSpace(r.Token)
}

// ResetPassword redeems a reset token and replaces the password.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_reset_fields_required")
	}

	if err := h.users.ValidatePassword(req.Password); err != nil {
		return BadRequest(c, "error_password_length")
	}

	ctx := c.Request().Context()
	user, err := h.users.FindUser(ctx, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return BadRequest(c, "error_user_not_found")
		}
		return InternalServerError(c, "user_lookup_failed", err)
	}

	if _, err := h.codes.RedeemResetToken(ctx, req.Email, req.Token); err != nil {
		switch {
		case errors.Is(err, codes.ErrInvalidToken):
			return BadRequest(c, "error_invalid_token")
		case errors.Is(err, codes.ErrExpired):
			return BadRequest(c, "error_reset_code_expired")
		default:
			return InternalServerError(c, "reset_token_redeem_failed", err)
		}
	}

	if err := h.users.SetPassword(ctx, user.ID, req.Password); err != nil {
		return InternalServerError(c, "password_update_failed", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_password_reset"),
	})
}

// CredentialsRequest is the request body for registration and login.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *CredentialsRequest) normalize() { r.Email = codes.NormalizeEmail(r.Email) }

// CompleteRegistration creates the account for a verified email.
func (h *AuthHandlers) CompleteRegistration(c echo.Context) error {
	var req CredentialsRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_credentials_required")
	}

	user, err := h.users.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			return BadRequest(c, "error_invalid_email")
		case errors.Is(err, auth.ErrWeakPassword):
			return BadRequest(c, "error_password_length")
		case errors.Is(err, auth.ErrNotVerified):
			return BadRequest(c, "error_not_verified")
		case errors.Is(err, auth.ErrUserExists):
			return BadRequest(c, "error_user_exists")
		default:
			return InternalServerError(c, "registration_failed", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_registered"),
		"userId":  user.ID,
	})
}

// Login checks credentials and sets the session cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := bindRequest(c, &req); err != nil {
		return BadRequest(c, "error_credentials_required")
	}

	user, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return Fail(c, http.StatusUnauthorized, "error_invalid_credentials")
		}
		return InternalServerError(c, "login_failed", err)
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return InternalServerError(c, "session_create_failed", err)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_logged_in"),
		"userId":  user.ID,
		"email":   user.Email,
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message(c, "msg_logged_out"),
	})
}
