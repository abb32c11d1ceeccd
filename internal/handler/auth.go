package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/middleware"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
	"github.com/iliyamo/portfolio-backend/internal/service"
	"github.com/iliyamo/portfolio-backend/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Accounts *repository.AccountRepo
	Tokens   *service.TokenService
	Hasher   utils.PasswordHasher
	Logger   *slog.Logger
}

func NewAuthHandler(accounts *repository.AccountRepo, tokens *service.TokenService, hasher utils.PasswordHasher, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Tokens: tokens, Hasher: hasher, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,notblank,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128,password"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

type profileReq struct {
	Name  *string `json:"name" validate:"omitempty,notblank,min=2,max=50"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128,password"`
}

func (r *registerReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *loginReq) normalize() { r.Email = strings.TrimSpace(r.Email) }

func (r *refreshReq) normalize() { r.RefreshToken = strings.TrimSpace(r.RefreshToken) }

func (r *profileReq) normalize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
}

type authData struct {
	User *model.Account `json:"user"`
	service.TokenPair
}

type refreshData struct {
	AccessToken   string     `json:"accessToken"`
	AccessExpiry  time.Time  `json:"accessTokenExpiresAt"`
	RefreshToken  string     `json:"refreshToken,omitempty"`
	RefreshExpiry *time.Time `json:"refreshTokenExpiresAt,omitempty"`
}

// Register creates a USER account and returns it with a fresh token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return apperror.Internal("Could not create account", err)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	acc := &model.Account{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := h.Accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.Conflict("An account with this email already exists")
		}
		return repoError(err, "Account")
	}
	pair, err := h.Tokens.IssueTokenPair(ctx, *acc)
	if err != nil {
		return apperror.Internal("Could not issue tokens", err)
	}
	h.Logger.Info("account registered", "account_id", acc.ID)
	return ok(c, http.StatusCreated, authData{User: acc, TokenPair: pair}, "Account created")
}

// Login verifies credentials and returns a new token pair.  Unknown email
// and wrong password are indistinguishable to the caller.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req, false); err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	acc, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Authentication(apperror.CodeInvalidCredentials, "Invalid email or password")
		}
		return repoError(err, "Account")
	}
	if !h.Hasher.Compare(req.Password, acc.PasswordHash) {
		return apperror.Authentication(apperror.CodeInvalidCredentials, "Invalid email or password")
	}
	if !acc.IsActive {
		return apperror.Authentication(apperror.CodeUnauthorizedAccount, "Account is inactive")
	}
	pair, err := h.Tokens.IssueTokenPair(ctx, *acc)
	if err != nil {
		return apperror.Internal("Could not issue tokens", err)
	}
	return ok(c, http.StatusOK, authData{User: acc, TokenPair: pair}, "Login successful")
}

// Refresh exchanges a live refresh token for a new access token.  With
// rotation enabled the presented token is revoked and a new one returned.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	raw := strings.TrimSpace(req.RefreshToken)

	claims, err := h.Tokens.VerifyRefreshToken(raw)
	if err != nil {
		if errors.Is(err, service.ErrExpiredToken) {
			return apperror.Authentication(apperror.CodeExpiredToken, "Refresh token has expired")
		}
		return apperror.Authentication(apperror.CodeInvalidToken, "Invalid refresh token")
	}
	subject, err := service.AccountID(claims.RegisteredClaims)
	if err != nil {
		return apperror.Authentication(apperror.CodeInvalidToken, "Invalid refresh token")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	rec, err := h.Tokens.FindLiveRefreshToken(ctx, raw)
	if err != nil {
		return apperror.Internal("Could not refresh token", err)
	}
	if rec == nil || rec.UserID != subject {
		return apperror.Authentication(apperror.CodeInvalidToken, "Refresh token has been revoked or has expired")
	}
	if !rec.Account.IsActive {
		return apperror.Authentication(apperror.CodeUnauthorizedAccount, "Account not found or inactive")
	}

	if h.Tokens.Rotate() {
		pair, err := h.Tokens.RotateRefreshToken(ctx, raw, rec.Account)
		if err != nil {
			return apperror.Internal("Could not refresh token", err)
		}
		exp := pair.RefreshExpiry
		return ok(c, http.StatusOK, refreshData{
			AccessToken:   pair.AccessToken,
			AccessExpiry:  pair.AccessExpiry,
			RefreshToken:  pair.RefreshToken,
			RefreshExpiry: &exp,
		}, "Token refreshed")
	}

	access, exp, err := h.Tokens.IssueAccessToken(rec.Account)
	if err != nil {
		return apperror.Internal("Could not refresh token", err)
	}
	return ok(c, http.StatusOK, refreshData{AccessToken: access, AccessExpiry: exp}, "Token refreshed")
}

// Logout revokes the refresh token named in the body, or every refresh
// token of the caller when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	acc, _ := middleware.CurrentAccount(c)
	var req logoutReq
	if err := bind(c, &req, true); err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		revoked, err := h.Tokens.RevokeToken(ctx, raw, acc.ID)
		if err != nil {
			return apperror.Internal("Logout failed", err)
		}
		n := 0
		if revoked {
			n = 1
		}
		return ok(c, http.StatusOK, echo.Map{"revoked": n}, "Logged out")
	}
	n, err := h.Tokens.RevokeAllForAccount(ctx, acc.ID)
	if err != nil {
		return apperror.Internal("Logout failed", err)
	}
	return ok(c, http.StatusOK, echo.Map{"revoked": n}, "Logged out from all sessions")
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	acc, _ := middleware.CurrentAccount(c)
	return ok(c, http.StatusOK, echo.Map{"user": acc}, "")
}

// UpdateProfile changes name and/or email of the caller.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	acc, _ := middleware.CurrentAccount(c)
	var req profileReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	if req.Name == nil && req.Email == nil {
		return apperror.Validation("Nothing to update",
			apperror.FieldError{Field: "name", Message: "name or email is required"})
	}
	name, email := acc.Name, acc.Email
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Accounts.UpdateProfile(ctx, acc.ID, name, email); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.Conflict("An account with this email already exists")
		}
		return repoError(err, "Account")
	}
	updated, err := h.Accounts.GetByID(ctx, acc.ID)
	if err != nil {
		return repoError(err, "Account")
	}
	return ok(c, http.StatusOK, echo.Map{"user": updated}, "Profile updated")
}

// ChangePassword verifies the current password, stores the new one and
// revokes every refresh token of the caller.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	acc, _ := middleware.CurrentAccount(c)
	var req changePasswordReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	if !h.Hasher.Compare(req.CurrentPassword, acc.PasswordHash) {
		return apperror.Validation("Current password is incorrect",
			apperror.FieldError{Field: "currentPassword", Message: "is incorrect"})
	}
	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		return apperror.Internal("Could not change password", err)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Accounts.UpdatePassword(ctx, acc.ID, hash); err != nil {
		return repoError(err, "Account")
	}
	if _, err := h.Tokens.RevokeAllForAccount(ctx, acc.ID); err != nil {
		return apperror.Internal("Could not revoke sessions", err)
	}
	return ok(c, http.StatusOK, nil, "Password changed, please log in again")
}
