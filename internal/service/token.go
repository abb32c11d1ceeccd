// Package service holds the application services that sit between the HTTP
// handlers and the repositories: the token service with its background
// sweeper, and the contact notifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/portfolio-backend/internal/config"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
	"github.com/iliyamo/portfolio-backend/internal/utils"
)

// Token verification failures.  ErrExpiredToken is only returned when the
// signature and every other claim check passed.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair is the result of a successful login or registration.
type TokenPair struct {
	AccessToken   string    `json:"accessToken"`
	AccessExpiry  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken  string    `json:"refreshToken"`
	RefreshExpiry time.Time `json:"refreshTokenExpiresAt"`
}

// TokenService issues, verifies, persists, rotates and expires tokens.
// Refresh tokens are signed JWTs that are additionally tracked server side
// (by SHA-256 digest) so they can be revoked before their natural expiry.
type TokenService struct {
	cfg        config.JWTConfig
	tokens     *repository.TokenRepo
	logger     *slog.Logger
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService validates the signing configuration.  A missing secret
// is a process-level misconfiguration and is reported at construction so
// the server never starts without one.
func NewTokenService(cfg config.JWTConfig, tokens *repository.TokenRepo, logger *slog.Logger) (*TokenService, error) {
	if cfg.Secret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token service: signing secrets are not configured")
	}
	if cfg.RefreshCap < 1 {
		cfg.RefreshCap = 5
	}
	now := time.Now
	if tokens != nil && tokens.Now != nil {
		now = tokens.Now
	}
	return &TokenService{
		cfg:        cfg,
		tokens:     tokens,
		logger:     logger,
		now:        now,
		accessTTL:  utils.ParseTTL(cfg.ExpiresIn, defaultAccessTTL),
		refreshTTL: utils.ParseTTL(cfg.RefreshExpiresIn, defaultRefreshTTL),
	}, nil
}

// IssueAccessToken signs a short-lived credential for a.
func (s *TokenService) IssueAccessToken(a model.Account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := utils.AccessClaims{
		Email:            a.Email,
		Role:             a.Role,
		Name:             a.Name,
		Type:             utils.TokenTypeAccess,
		RegisteredClaims: utils.RegisteredFor(a.ID, s.cfg.Issuer, s.cfg.Audience, now, exp),
	}
	tok, err := utils.Sign(claims, s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return tok, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a long-lived credential for a.  It does not
// persist it; see PersistRefreshToken and IssueTokenPair.
func (s *TokenService) IssueRefreshToken(a model.Account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.refreshTTL)
	claims := utils.RefreshClaims{
		Type:             utils.TokenTypeRefresh,
		RegisteredClaims: utils.RegisteredFor(a.ID, s.cfg.Issuer, s.cfg.Audience, now, exp),
	}
	tok, err := utils.Sign(claims, s.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return tok, claims.ExpiresAt.Time, nil
}

// PersistRefreshToken records token for the account.  Expired records of
// the account are purged first; if the account is still at or above the
// cap, its oldest live records are evicted so that, after the insert,
// exactly cap live records remain (FIFO, scoped to this account).
func (s *TokenService) PersistRefreshToken(ctx context.Context, accountID uint64, token string, exp time.Time) error {
	if _, err := s.tokens.DeleteExpiredForUser(ctx, accountID); err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	live, err := s.tokens.LiveIDsForUser(ctx, accountID)
	if err != nil {
		return fmt.Errorf("list live tokens: %w", err)
	}
	if keep := s.cfg.RefreshCap - 1; len(live) > keep {
		evicted, err := s.tokens.DeleteByIDs(ctx, live[keep:])
		if err != nil {
			return fmt.Errorf("evict old tokens: %w", err)
		}
		s.logger.Debug("evicted refresh tokens over cap", "account_id", accountID, "count", evicted)
	}
	if _, err := s.tokens.Store(ctx, accountID, utils.HashRefreshRaw(token), exp); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// VerifyAccessToken checks signature, issuer, audience, type and expiry.
func (s *TokenService) VerifyAccessToken(raw string) (*utils.AccessClaims, error) {
	var claims utils.AccessClaims
	if err := s.parse(raw, &claims, s.cfg.Secret); err != nil {
		return nil, err
	}
	if claims.Type != utils.TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// VerifyRefreshToken checks a refresh token the same way, against the
// refresh secret.
func (s *TokenService) VerifyRefreshToken(raw string) (*utils.RefreshClaims, error) {
	var claims utils.RefreshClaims
	if err := s.parse(raw, &claims, s.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != utils.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *TokenService) parse(raw string, claims jwt.Claims, secret string) error {
	err := utils.Parse(raw, claims, secret, s.cfg.Issuer, s.cfg.Audience, s.now)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired) && !hasOtherValidationError(err):
		return ErrExpiredToken
	default:
		return ErrInvalidToken
	}
}

// hasOtherValidationError reports whether err carries a claim failure besides
// expiry.  The jwt validator joins every failed check into one error.
func hasOtherValidationError(err error) bool {
	for _, other := range []error{
		jwt.ErrTokenSignatureInvalid, jwt.ErrTokenMalformed, jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidIssuer, jwt.ErrTokenInvalidAudience, jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued, jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return true
		}
	}
	return false
}

// AccountID extracts the numeric subject of verified claims.
func AccountID(claims jwt.RegisteredClaims) (uint64, error) {
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// FindLiveRefreshToken looks up a non-expired, non-revoked refresh token and
// its owner.  It returns (nil, nil) when no such record exists.
func (s *TokenService) FindLiveRefreshToken(ctx context.Context, raw string) (*model.LiveRefreshToken, error) {
	rec, err := s.tokens.FindLive(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RevokeToken deletes the record for raw.  When accountID is non-zero the
// record must belong to that account.  It reports whether a record was
// deleted.
func (s *TokenService) RevokeToken(ctx context.Context, raw string, accountID uint64) (bool, error) {
	n, err := s.tokens.DeleteByHash(ctx, utils.HashRefreshRaw(raw), accountID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllForAccount deletes every refresh token of the account.
func (s *TokenService) RevokeAllForAccount(ctx context.Context, accountID uint64) (int64, error) {
	return s.tokens.DeleteAllForUser(ctx, accountID)
}

// SweepExpired deletes every record whose expiry has passed.  It is
// idempotent: a second run right after the first deletes nothing.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// IssueTokenPair issues and persists a fresh access/refresh pair for a.
func (s *TokenService) IssueTokenPair(ctx context.Context, a model.Account) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(a)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(a)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.PersistRefreshToken(ctx, a.ID, refresh, refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:   access,
		AccessExpiry:  accessExp,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExp,
	}, nil
}

// RotateRefreshToken revokes raw and issues a new pair for a.  Used by the
// refresh endpoint when rotation is enabled.
func (s *TokenService) RotateRefreshToken(ctx context.Context, raw string, a model.Account) (TokenPair, error) {
	if _, err := s.RevokeToken(ctx, raw, a.ID); err != nil {
		return TokenPair{}, fmt.Errorf("revoke rotated token: %w", err)
	}
	return s.IssueTokenPair(ctx, a)
}

// Rotate reports whether refresh rotation is enabled.
func (s *TokenService) Rotate() bool { return s.cfg.Rotate }
