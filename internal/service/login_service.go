package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/kuro"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
	"github.com/HibiKier/wuthering-waves/pkg/validator"
)

// AccountAPI is the part of the companion API used to log in and bind.
type AccountAPI interface {
	Login(ctx context.Context, mobile, code, deviceID string) (*kuro.LoginResult, error)
	ListGameRoles(ctx context.Context, token, deviceID string) ([]domain.GameRole, error)
	RequestAccessToken(ctx context.Context, playerID, token, deviceID, serverID string) (string, error)
	Platform() string
}

// TokenRememberer primes the access token cache after a bind.
type TokenRememberer interface {
	Remember(ctx context.Context, playerID, token string) error
}

const (
	DefaultLoginTimeout    = 600 * time.Second
	DefaultMaxPendingLogin = 10
)

type CodeLoginRequest struct {
	Mobile string `json:"mobile" validate:"required,len=11,numeric"`
	Code   string `json:"code" validate:"required,numeric"`
}

type LoginOptions struct {
	Timeout    time.Duration
	MaxPending int
}

type pendingLogin struct {
	userID string
	done   chan loginOutcome
}

type loginOutcome struct {
	record *domain.SessionRecord
	err    error
}

// LoginService binds game accounts to chat users, either from a token the
// user already has or through a phone code login.
type LoginService struct {
	api       AccountAPI
	sessions  repository.SessionRepository
	tokens    TokenRememberer
	validator *validator.Validator
	timeout   time.Duration
	pending   *ttlcache.Cache[string, *pendingLogin]
}

func NewLoginService(api AccountAPI, sessions repository.SessionRepository, tokens TokenRememberer, opts LoginOptions) *LoginService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLoginTimeout
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPendingLogin
	}
	return &LoginService{
		api:       api,
		sessions:  sessions,
		tokens:    tokens,
		validator: validator.NewValidator(),
		timeout:   opts.Timeout,
		pending:   cache.NewTTLCache[*pendingLogin](opts.Timeout, opts.MaxPending),
	}
}

// Bind stores token as the session of the user's game account. The first
// role of the game is the one bound.
func (s *LoginService) Bind(ctx context.Context, userID, token, deviceID string) (*domain.SessionRecord, error) {
	roles, err := s.api.ListGameRoles(ctx, token, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to bind token for user %s: %w", userID, err)
	}

	var role *domain.GameRole
	for i := range roles {
		if roles[i].GameID == kuro.GameID {
			role = &roles[i]
			break
		}
	}
	if role == nil {
		return nil, domain.ErrNoBoundAccount
	}

	accessToken, err := s.api.RequestAccessToken(ctx, role.PlayerID, token, deviceID, role.ServerID)
	if err != nil {
		return nil, fmt.Errorf("failed to bind player %s: %w", role.PlayerID, err)
	}

	record := &domain.SessionRecord{
		OwnerUserID:  userID,
		PlayerID:     role.PlayerID,
		ServerID:     role.ServerID,
		SessionToken: token,
		AccessToken:  accessToken,
		DeviceID:     deviceID,
		Platform:     s.api.Platform(),
		Status:       domain.SessionStatusValid,
	}
	if err := s.sessions.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save session for player %s: %w", role.PlayerID, err)
	}
	if s.tokens != nil {
		if err := s.tokens.Remember(ctx, role.PlayerID, accessToken); err != nil {
			log.Warn().Err(err).Str("component", "login").Str("player_id", role.PlayerID).Msg("failed to cache access token")
		}
	}

	log.Info().
		Str("component", "login").
		Str("user_id", userID).
		Str("player_id", role.PlayerID).
		Msg("game account bound")
	return record, nil
}

// CodeLogin logs in with a phone number and SMS code under a fresh device id
// and binds the resulting session.
func (s *LoginService) CodeLogin(ctx context.Context, userID string, req CodeLoginRequest) (*domain.SessionRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	deviceID := strings.ToUpper(uuid.NewString())
	result, err := s.api.Login(ctx, req.Mobile, req.Code, deviceID)
	if err != nil {
		return nil, err
	}
	return s.Bind(ctx, userID, result.Token, deviceID)
}

// PageLoginKey is the key of a user's pending page login.
func PageLoginKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:8]
}

// BeginPageLogin opens a login the user completes on a web page, returning
// the key the page submits with. Only the most recent pending logins are
// kept.
func (s *LoginService) BeginPageLogin(userID string) (string, error) {
	key := PageLoginKey(userID)
	if s.pending.Has(key) {
		return "", domain.ErrLoginPending
	}
	s.pending.Set(key, &pendingLogin{userID: userID, done: make(chan loginOutcome, 1)}, ttlcache.DefaultTTL)
	return key, nil
}

// SubmitPageLogin completes the pending login of key with the phone code
// entered on the page.
func (s *LoginService) SubmitPageLogin(ctx context.Context, key string, req CodeLoginRequest) (*domain.SessionRecord, error) {
	item := s.pending.Get(key)
	if item == nil {
		return nil, domain.ErrLoginTimeout
	}
	p := item.Value()

	record, err := s.CodeLogin(ctx, p.userID, req)
	if err != nil {
		// A validation or login failure lets the user try again.
		return nil, err
	}

	// The waiter releases the entry once it picks the outcome up.
	select {
	case p.done <- loginOutcome{record: record}:
	default:
	}
	return record, nil
}

// WaitPageLogin blocks until the page login of key completes or times out.
// The pending entry is released either way.
func (s *LoginService) WaitPageLogin(ctx context.Context, key string) (*domain.SessionRecord, error) {
	item := s.pending.Get(key)
	if item == nil {
		return nil, domain.ErrLoginTimeout
	}
	p := item.Value()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case out := <-p.done:
		s.pending.Delete(key)
		return out.record, out.err
	case <-timer.C:
		s.pending.Delete(key)
		return nil, domain.ErrLoginTimeout
	case <-ctx.Done():
		s.pending.Delete(key)
		return nil, ctx.Err()
	}
}
