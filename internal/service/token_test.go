package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/iliyamo/portfolio-backend/internal/config"
	"github.com/iliyamo/portfolio-backend/internal/database"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	clock    *fakeClock
	accounts *repository.AccountRepo
	tokens   *repository.TokenRepo
	svc      *TokenService
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:           "access-secret-for-tests",
		RefreshSecret:    "refresh-secret-for-tests",
		Issuer:           "portfolio-api",
		Audience:         "portfolio-client",
		ExpiresIn:        "15m",
		RefreshExpiresIn: "7d",
		RefreshCap:       5,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLiteMemory(context.Background())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:    clock,
		accounts: repository.NewAccountRepo(db, clock.Now),
		tokens:   repository.NewTokenRepo(db, clock.Now),
	}
	f.svc, err = NewTokenService(testJWTConfig(), f.tokens, discardLogger())
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return f
}

func (f *fixture) account(t *testing.T, email string) model.Account {
	t.Helper()
	a := &model.Account{Name: "Ana", Email: email, PasswordHash: "x", Role: model.RoleUser}
	if err := f.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return *a
}

func (f *fixture) liveCount(t *testing.T, accountID uint64) int {
	t.Helper()
	ids, err := f.tokens.LiveIDsForUser(context.Background(), accountID)
	if err != nil {
		t.Fatalf("live ids: %v", err)
	}
	return len(ids)
}

func TestNewTokenService_RequiresSecrets(t *testing.T) {
	cfg := testJWTConfig()
	cfg.RefreshSecret = ""
	if _, err := NewTokenService(cfg, nil, discardLogger()); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
}

func TestPersistRefreshToken_CapKeepsNewestFive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "ana@x.com")

	var issued []string
	for i := 0; i < 7; i++ {
		pair, err := f.svc.IssueTokenPair(ctx, acc)
		if err != nil {
			t.Fatalf("issue pair %d: %v", i, err)
		}
		issued = append(issued, pair.RefreshToken)
		f.clock.Advance(time.Second)
	}

	if n := f.liveCount(t, acc.ID); n != 5 {
		t.Fatalf("expected 5 live tokens, got %d", n)
	}
	for i, tok := range issued {
		rec, err := f.svc.FindLiveRefreshToken(ctx, tok)
		if err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
		wantLive := i >= 2
		if (rec != nil) != wantLive {
			t.Fatalf("token %d: live=%v, want %v", i, rec != nil, wantLive)
		}
	}
}

func TestPersistRefreshToken_CapIsPerAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a@x.com")
	b := f.account(t, "b@x.com")

	for i := 0; i < 5; i++ {
		if _, err := f.svc.IssueTokenPair(ctx, a); err != nil {
			t.Fatalf("issue a: %v", err)
		}
	}
	if _, err := f.svc.IssueTokenPair(ctx, b); err != nil {
		t.Fatalf("issue b: %v", err)
	}
	for _, tc := range []struct {
		id   uint64
		want int
	}{{a.ID, 5}, {b.ID, 1}} {
		if n := f.liveCount(t, tc.id); n != tc.want {
			t.Fatalf("account %d: expected %d live tokens, got %d", tc.id, tc.want, n)
		}
	}
}

func TestPersistRefreshToken_PurgesExpiredFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "ana@x.com")

	for i := 0; i < 5; i++ {
		if _, err := f.svc.IssueTokenPair(ctx, acc); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	f.clock.Advance(8 * 24 * time.Hour)
	pair, err := f.svc.IssueTokenPair(ctx, acc)
	if err != nil {
		t.Fatalf("issue after expiry: %v", err)
	}
	var total int64
	if err := f.tokens.DB.QueryRow("SELECT COUNT(*) FROM refresh_tokens").Scan(&total); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected expired rows to be purged, %d rows remain", total)
	}
	if rec, _ := f.svc.FindLiveRefreshToken(ctx, pair.RefreshToken); rec == nil {
		t.Fatal("fresh token should be live")
	}
}

func TestSweepExpired_RemovesOnlyExpiredAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.account(t, "old@x.com")
	fresh := f.account(t, "fresh@x.com")

	for i := 0; i < 3; i++ {
		if _, err := f.svc.IssueTokenPair(ctx, old); err != nil {
			t.Fatalf("issue old: %v", err)
		}
	}
	f.clock.Advance(7*24*time.Hour + time.Minute)
	pair, err := f.svc.IssueTokenPair(ctx, fresh)
	if err != nil {
		t.Fatalf("issue fresh: %v", err)
	}

	n, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("first sweep removed %d, want 3", n)
	}
	n, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep removed %d, want 0", n)
	}
	if rec, _ := f.svc.FindLiveRefreshToken(ctx, pair.RefreshToken); rec == nil {
		t.Fatal("unexpired token was swept")
	}
}

func TestVerifyAccessToken_RoundTripAndExpiry(t *testing.T) {
	f := newFixture(t)
	acc := model.Account{ID: 42, Name: "Ana", Email: "ana@x.com", Role: model.RoleAdmin}

	tok, exp, err := f.svc.IssueAccessToken(acc)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := f.clock.Now().Add(15 * time.Minute); !exp.Equal(want) {
		t.Fatalf("expiry = %v, want %v", exp, want)
	}

	claims, err := f.svc.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, err := AccountID(claims.RegisteredClaims)
	if err != nil || id != acc.ID {
		t.Fatalf("subject = %d (%v), want %d", id, err, acc.ID)
	}
	if claims.Email != acc.Email || claims.Role != acc.Role || claims.Name != acc.Name {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := f.svc.VerifyAccessToken(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	f := newFixture(t)
	acc := model.Account{ID: 7, Email: "x@x.com", Role: model.RoleUser}
	access, _, err := f.svc.IssueAccessToken(acc)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, _, err := f.svc.IssueRefreshToken(acc)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	otherCfg := testJWTConfig()
	otherCfg.Audience = "someone-else"
	other, err := NewTokenService(otherCfg, f.tokens, discardLogger())
	if err != nil {
		t.Fatalf("other service: %v", err)
	}

	cases := []struct {
		name string
		svc  *TokenService
		tok  string
	}{
		{"garbage", f.svc, "not-a-jwt"},
		{"tampered", f.svc, access[:len(access)-2] + "xx"},
		{"refresh token as access", f.svc, refresh},
		{"wrong audience", other, access},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.svc.VerifyAccessToken(tc.tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	if _, err := f.svc.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
	if _, err := f.svc.VerifyRefreshToken(refresh); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "ana@x.com")
	other := f.account(t, "other@x.com")

	pair, err := f.svc.IssueTokenPair(ctx, acc)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ok, err := f.svc.RevokeToken(ctx, pair.RefreshToken, other.ID); err != nil || ok {
		t.Fatalf("revoke by non-owner: ok=%v err=%v", ok, err)
	}
	if ok, err := f.svc.RevokeToken(ctx, pair.RefreshToken, acc.ID); err != nil || !ok {
		t.Fatalf("revoke by owner: ok=%v err=%v", ok, err)
	}
	rec, err := f.svc.FindLiveRefreshToken(ctx, pair.RefreshToken)
	if err != nil || rec != nil {
		t.Fatalf("revoked token still live: %+v %v", rec, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.IssueTokenPair(ctx, acc); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	n, err := f.svc.RevokeAllForAccount(ctx, acc.ID)
	if err != nil || n != 3 {
		t.Fatalf("revoke all: n=%d err=%v", n, err)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "ana@x.com")

	first, err := f.svc.IssueTokenPair(ctx, acc)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := f.svc.RotateRefreshToken(ctx, first.RefreshToken, acc)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}
	if rec, _ := f.svc.FindLiveRefreshToken(ctx, first.RefreshToken); rec != nil {
		t.Fatal("rotated token is still live")
	}
	rec, err := f.svc.FindLiveRefreshToken(ctx, second.RefreshToken)
	if err != nil || rec == nil {
		t.Fatalf("new token not live: %v", err)
	}
	if rec.Account.Email != "ana@x.com" {
		t.Fatalf("joined account = %+v", rec.Account)
	}
}

func TestRefreshToken_RejectedOnceExpiredWithoutSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "ana@x.com")

	pair, err := f.svc.IssueTokenPair(ctx, acc)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	f.clock.Advance(7*24*time.Hour + time.Second)

	if _, err := f.svc.VerifyRefreshToken(pair.RefreshToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("verify: got %v, want ErrExpiredToken", err)
	}
	rec, err := f.svc.FindLiveRefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Fatalf("expired token still live: %+v", rec)
	}
	// The row is still stored: only the expiry filter hid it.
	if n, err := f.svc.SweepExpired(ctx); err != nil || n != 1 {
		t.Fatalf("sweep after expiry: n=%d err=%v", n, err)
	}
}
