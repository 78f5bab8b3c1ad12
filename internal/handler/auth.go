package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/config"
	"github.com/iliyamo/storefront-identity/internal/middleware"
	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/service"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// RefreshCookie carries the refresh token.  It is scoped to the auth
// endpoints so it never travels with ordinary API calls.
const (
	RefreshCookie     = "refresh_token"
	refreshCookiePath = "/v1/auth"
)

const requestTimeout = 5 * time.Second

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput, sc service.SessionContext) (service.AuthResult, error)
	Login(ctx context.Context, email, password string, sc service.SessionContext) (service.AuthResult, error)
	Refresh(ctx context.Context, raw string, sc service.SessionContext) (service.AuthResult, error)
	Logout(ctx context.Context, raw, callerID string) (int64, error)
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
	EmailExists(ctx context.Context, email, clientIP string) bool
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth    Authenticator
	Cookies config.CookieConfig
}

func NewAuthHandler(auth Authenticator, cookies config.CookieConfig) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: cookies}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
	Legacy       string `json:"refresh_token"`
}

func (r refreshReq) token() string {
	if t := strings.TrimSpace(r.RefreshToken); t != "" {
		return t
	}
	return strings.TrimSpace(r.Legacy)
}

type checkEmailReq struct {
	Email string `json:"email" validate:"required,email"`
}

type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// authResp is the one shape every token-issuing endpoint returns.  Token
// duplicates AccessToken for older clients.
type authResp struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	Token                 string    `json:"token"`
	AccessExpiresAt       time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt      time.Time `json:"refreshExpiresAt"`
	User                  userPart  `json:"user"`
	AssociatedOrdersCount *int64    `json:"associatedOrdersCount,omitempty"`
}

func newAuthResp(res service.AuthResult, withOrders bool) authResp {
	out := authResp{
		AccessToken:      res.Tokens.Access.Token,
		RefreshToken:     res.Tokens.Refresh.Raw,
		Token:            res.Tokens.Access.Token,
		AccessExpiresAt:  res.Tokens.Access.Exp,
		RefreshExpiresAt: res.Tokens.Refresh.Exp,
		User:             toUserPart(res.User),
	}
	if withOrders {
		n := res.AssociatedOrders
		out.AssociatedOrdersCount = &n
	}
	return out
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func sessionContext(c echo.Context) service.SessionContext {
	return service.SessionContext{
		GuestSessionID: middleware.GuestSessionID(c),
		RequestID:      middleware.GetRequestID(c),
		Meta:           middleware.ClientMeta(c),
	}
}

// bindValid binds and validates the body, writing the 400 itself.  ok is
// false when the response has been written.
func bindValid(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

// Register creates a customer account, returns a token pair and folds the
// caller's guest cart, wishlist and orders into it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{Email: req.Email, Password: req.Password, Name: strings.TrimSpace(req.Name)}, sessionContext(c))
	if err != nil {
		return h.authError(c, err)
	}
	h.setAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusCreated, newAuthResp(res, true))
}

// Login verifies credentials and returns a new pair.  Unknown email and
// wrong password are indistinguishable.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, sessionContext(c))
	if err != nil {
		return h.authError(c, err)
	}
	h.setAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, newAuthResp(res, true))
}

// Refresh rotates the refresh token from the body or the refresh cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := req.token()
	if raw == "" {
		if ck, err := c.Cookie(RefreshCookie); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, raw, sessionContext(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			h.clearAuthCookies(c)
		}
		return h.authError(c, err)
	}
	h.setAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, newAuthResp(res, false))
}

// Logout revokes the presented refresh token (body or cookie).  Without
// one, an authenticated caller is logged out of every session.  Repeating
// a logout succeeds with revoked=0.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := req.token()
	if raw == "" {
		if ck, err := c.Cookie(RefreshCookie); err == nil {
			raw = ck.Value
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.Auth.Logout(ctx, raw, middleware.CurrentUserID(c))
	h.clearAuthCookies(c)
	if errors.Is(err, service.ErrNothingToRevoke) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refreshToken"})
	}
	if err != nil {
		middleware.GetLogger(c).Error().Err(err).Msg("logout failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

// CheckEmail answers whether an address is registered.  Throttled and
// failed lookups answer true so the endpoint cannot enumerate accounts.
func (h *AuthHandler) CheckEmail(c echo.Context) error {
	var req checkEmailReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return c.JSON(http.StatusOK, echo.Map{"exists": h.Auth.EmailExists(ctx, req.Email, c.RealIP())})
}

// Me returns the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	cl := middleware.CurrentClaims(c)
	if cl == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"userId": cl.UserID,
		"email":  cl.Email,
		"role":   cl.Role,
	})
}

// RevokeSessions is the admin "log this user out everywhere" action.
func (h *AuthHandler) RevokeSessions(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.Auth.RevokeAllSessions(ctx, id)
	if err != nil {
		middleware.GetLogger(c).Error().Err(err).Str("user_id", id).Msg("admin revoke failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	middleware.GetLogger(c).Info().
		Str("user_id", id).
		Str("admin_id", middleware.CurrentUserID(c)).
		Int64("revoked", n).
		Msg("sessions revoked by admin")
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func (h *AuthHandler) authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrInvalidRefresh):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	case errors.Is(err, service.ErrEmailTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, utils.ErrConfiguration):
		middleware.GetLogger(c).Error().Err(err).Msg("token signing is misconfigured")
	default:
		middleware.GetLogger(c).Error().Err(err).Msg("auth request failed")
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func (h *AuthHandler) setAuthCookies(c echo.Context, pair utils.TokenPair) {
	c.SetCookie(h.cookie(middleware.AccessCookie, pair.Access.Token, "/", pair.Access.Exp))
	c.SetCookie(h.cookie(RefreshCookie, pair.Refresh.Raw, refreshCookiePath, pair.Refresh.Exp))
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, ck := range []*http.Cookie{
		h.cookie(middleware.AccessCookie, "", "/", time.Time{}),
		h.cookie(RefreshCookie, "", refreshCookiePath, time.Time{}),
	} {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value, path string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !exp.IsZero() {
		ck.Expires = exp
		ck.MaxAge = int(time.Until(exp).Seconds())
	}
	return ck
}
