package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/enrollhub/internal/accounts"
	"github.com/geocoder89/enrollhub/internal/auth"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/http/middlewares"
	"github.com/geocoder89/enrollhub/internal/revocation"
	"github.com/geocoder89/enrollhub/internal/security"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, req user.RegisterRequest) (user.User, error)
	Authenticate(ctx context.Context, email, password string) (user.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type TokenIssuer interface {
	Issue(userID string) (string, *auth.Claims, error)
}

type AuthHandler struct {
	accounts AccountService
	tokens   TokenIssuer
	denylist revocation.Denylist
	log      *slog.Logger
}

// NewAuthHandler wires the auth endpoints. denylist may be nil, in which
// case logout is client-side only.
func NewAuthHandler(accounts AccountService, tokens TokenIssuer, denylist revocation.Denylist, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		denylist: denylist,
		log:      log,
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates this call
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	u, err := h.accounts.Register(cctx, req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondRejected(ctx, "email_taken", "User already exists")
		case errors.Is(err, accounts.ErrAdminSignupDisabled):
			RespondForbidden(ctx, "admin_signup_disabled", "Admin self-registration is disabled")
		case errors.Is(err, security.ErrPasswordTooLong):
			respondFieldError(ctx, passwordTooLong("password"))
		default:
			respondServerError(ctx, h.log, "Could not create user", err)
		}
		return
	}

	token, _, err := h.tokens.Issue(u.ID)
	if err != nil {
		respondServerError(ctx, h.log, "Could not generate access token", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    u.Public(),
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	u, err := h.accounts.Authenticate(cctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Invalid credentials")
			return
		}
		respondServerError(ctx, h.log, "Could not log in", err)
		return
	}

	token, _, err := h.tokens.Issue(u.ID)
	if err != nil {
		respondServerError(ctx, h.log, "Could not generate access token", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    u.Public(),
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req user.ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	err := h.accounts.ChangePassword(cctx, u.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidCurrentPassword):
			RespondRejected(ctx, "invalid_current_password", "Current password is incorrect")
		case errors.Is(err, security.ErrPasswordTooLong):
			respondFieldError(ctx, passwordTooLong("newPassword"))
		case errors.Is(err, user.ErrNotFound):
			RespondUnAuthorized(ctx, "unauthorized", "User no longer exists")
		default:
			respondServerError(ctx, h.log, "Could not change password", err)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// Logout revokes the presented token when a denylist is configured.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	claims, ok := middlewares.CurrentClaims(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if h.denylist != nil {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.denylist.Revoke(cctx, claims.ID, claims.ExpiresAtTime()); err != nil {
			h.log.ErrorContext(cctx, "token revoke failed", "err", err, "request_id", requestIDFrom(ctx))
			RespondUnavailable(ctx, "Could not revoke token")
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// the max tag counts characters, bcrypt counts bytes
func passwordTooLong(field string) FieldError {
	return FieldError{
		Field:   field,
		Rule:    "max_bytes",
		Param:   strconv.Itoa(security.MaxPasswordBytes),
		Message: "must be at most " + strconv.Itoa(security.MaxPasswordBytes) + " bytes",
	}
}
