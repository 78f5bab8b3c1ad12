package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/queue"
	"github.com/iliyamo/storefront-identity/internal/ratelimit"
	"github.com/iliyamo/storefront-identity/internal/repository"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// AuthOptions tunes AuthService.
type AuthOptions struct {
	BcryptCost       int
	EmailCheckLimit  int
	EmailCheckWindow time.Duration
	// ReuseGrace is how long after a rotation the old token may be presented
	// again without being treated as theft.  It absorbs two tabs refreshing
	// at once.
	ReuseGrace time.Duration
}

// AuthService implements registration, login, refresh rotation, logout and
// the email-existence probe.
type AuthService struct {
	Users      UserStore
	Tokens     RefreshTokenStore
	Issuer     *utils.TokenIssuer
	Reconciler *Reconciler
	Limiter    ratelimit.Limiter
	Events     queue.Sink
	opts       AuthOptions
	now        func() time.Time

	decoyOnce sync.Once
	decoy     utils.DecoyHash
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, issuer *utils.TokenIssuer, rec *Reconciler, limiter ratelimit.Limiter, events queue.Sink, opts AuthOptions) *AuthService {
	if events == nil {
		events = queue.Nop{}
	}
	if opts.EmailCheckLimit < 1 {
		opts.EmailCheckLimit = 5
	}
	if opts.EmailCheckWindow <= 0 {
		opts.EmailCheckWindow = time.Hour
	}
	if opts.ReuseGrace <= 0 {
		opts.ReuseGrace = 10 * time.Second
	}
	s := &AuthService{
		Users:      users,
		Tokens:     tokens,
		Issuer:     issuer,
		Reconciler: rec,
		Limiter:    limiter,
		Events:     events,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.decoyHash(context.Background())
	return s
}

// SessionContext carries what the gatekeeper learned about the request.
type SessionContext struct {
	GuestSessionID string
	RequestID      string
	Meta           model.ClientMeta
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	User             model.User
	Tokens           utils.TokenPair
	AssociatedOrders int64
}

// RegisterInput is a self-service sign-up.  The role is always customer.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates a customer, issues a token pair and reconciles the
// caller's guest state into the new account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, sc SessionContext) (AuthResult, error) {
	hash, err := utils.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.Users.Create(ctx, in.Email, in.Name, hash, model.RoleCustomer)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}
	return s.startSession(ctx, u, sc)
}

// VerifyCredentials returns the user when email and password match an
// active account.  Every failure is ErrInvalidCredentials.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.decoyHash(ctx).Burn(password)
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// decoyHash is built on first use at the configured cost.
func (s *AuthService) decoyHash(ctx context.Context) utils.DecoyHash {
	s.decoyOnce.Do(func() {
		d, err := utils.NewDecoyHash(s.opts.BcryptCost)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("build decoy password hash")
			return
		}
		s.decoy = d
	})
	return s.decoy
}

// Login verifies credentials, issues a token pair and reconciles.
func (s *AuthService) Login(ctx context.Context, email, password string, sc SessionContext) (AuthResult, error) {
	u, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return AuthResult{}, err
	}
	return s.startSession(ctx, u, sc)
}

func (s *AuthService) startSession(ctx context.Context, u model.User, sc SessionContext) (AuthResult, error) {
	pair, err := s.Issuer.IssueTokenPair(u.ID, u.Email, u.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.Tokens.Store(ctx, u.ID, pair.Refresh.Raw, pair.Refresh.Exp, sc.Meta); err != nil {
		return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
	}
	res := AuthResult{User: u, Tokens: pair}
	if s.Reconciler != nil {
		rec := s.Reconciler.Reconcile(ctx, u.ID, sc.GuestSessionID, u.Email)
		res.AssociatedOrders = rec.OrdersAssociated
	}
	return res, nil
}

// Refresh exchanges a refresh token for a new pair.  The presented token is
// retired atomically; presenting it again fails and is reported as a
// security event.  A token rotated longer than ReuseGrace ago also revokes
// every session of its owner.
func (s *AuthService) Refresh(ctx context.Context, raw string, sc SessionContext) (AuthResult, error) {
	if raw == "" || utils.LooksLikeJWT(raw) {
		return AuthResult{}, ErrInvalidRefresh
	}
	next, err := s.Issuer.NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	userID, err := s.Tokens.VerifyAndRotate(ctx, raw, repository.NextRefresh{Raw: next.Raw, ExpiresAt: next.Exp, Meta: sc.Meta})
	if err != nil {
		var reuse *repository.ReuseError
		switch {
		case errors.As(err, &reuse):
			s.handleReuse(ctx, reuse, sc)
			return AuthResult{}, ErrInvalidRefresh
		case errors.Is(err, repository.ErrRefreshNotFound),
			errors.Is(err, repository.ErrRefreshExpired),
			errors.Is(err, repository.ErrRefreshRevoked):
			return AuthResult{}, ErrInvalidRefresh
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	u, err := s.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		if _, rerr := s.Tokens.Revoke(ctx, next.Raw); rerr != nil {
			zerolog.Ctx(ctx).Warn().Err(rerr).Str("user_id", userID).Msg("revoke orphaned refresh token failed")
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, fmt.Errorf("load user: %w", err)
		}
		return AuthResult{}, ErrInvalidRefresh
	}

	access, err := s.Issuer.NewAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	return AuthResult{User: u, Tokens: utils.TokenPair{Access: access, Refresh: next}}, nil
}

// handleReuse reports every replay of a rotated refresh token.  Inside the
// grace window sessions are kept so parallel tabs survive a shared rotation;
// after it every session of the owner is revoked.
func (s *AuthService) handleReuse(ctx context.Context, reuse *repository.ReuseError, sc SessionContext) {
	log := zerolog.Ctx(ctx)
	ev := queue.SecurityEvent{
		Type:       queue.EventRefreshReuse,
		UserID:     reuse.UserID,
		ClientIP:   sc.Meta.ClientIP,
		RequestID:  sc.RequestID,
		OccurredAt: s.now().Format(time.RFC3339),
	}
	if s.now().Sub(reuse.RotatedAt) <= s.opts.ReuseGrace {
		ev.WithinGrace = true
		log.Warn().Str("user_id", reuse.UserID).Str("client_ip", sc.Meta.ClientIP).
			Msg("rotated refresh token reused within grace period")
		_ = s.Events.Publish(ctx, ev)
		return
	}
	n, err := s.Tokens.RevokeAll(ctx, reuse.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", reuse.UserID).Msg("revoke sessions after refresh reuse failed")
	}
	log.Warn().Str("user_id", reuse.UserID).Int64("revoked", n).Str("client_ip", sc.Meta.ClientIP).
		Msg("rotated refresh token reused; all sessions revoked")
	_ = s.Events.Publish(ctx, ev)
}

// Logout revokes raw when given, otherwise every session of callerID.  It
// returns how many records changed; repeating a logout is not an error.
func (s *AuthService) Logout(ctx context.Context, raw, callerID string) (int64, error) {
	switch {
	case raw != "":
		changed, err := s.Tokens.Revoke(ctx, raw)
		if err != nil {
			return 0, fmt.Errorf("revoke refresh token: %w", err)
		}
		if changed {
			return 1, nil
		}
		return 0, nil
	case callerID != "":
		return s.RevokeAllSessions(ctx, callerID)
	}
	return 0, ErrNothingToRevoke
}

// RevokeAllSessions revokes every refresh token of userID.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.Tokens.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

// EmailExists answers the sign-up form's "is this address registered"
// probe.  When the caller is over budget or the lookup fails the answer
// is true, the same as for a registered address, so the probe cannot be
// used to enumerate accounts.
func (s *AuthService) EmailExists(ctx context.Context, email, clientIP string) bool {
	res, err := s.Limiter.Check(ctx, "email-check:"+clientIP, s.opts.EmailCheckLimit, s.opts.EmailCheckWindow)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("email check limiter failed")
		return true
	}
	if !res.Allowed {
		return true
	}
	_, err = s.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repository.ErrNotFound):
		return false
	}
	zerolog.Ctx(ctx).Warn().Err(err).Msg("email check lookup failed")
	return true
}
