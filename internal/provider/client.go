package provider

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"storefront-api/internal/domain"
	"storefront-api/internal/gateway"
	"storefront-api/internal/query"
	"storefront-api/internal/retry"
)

// Client speaks the hosted provider's HTTP contract: token-grant auth
// endpoints plus a PostgREST-style data API. All round trips go through the
// gateway; reads additionally go through the retry wrapper.
type Client struct {
	gw     *gateway.Client
	apiKey string
	logger *log.Logger
}

// New builds a Client. apiKey may be empty when the provider does not
// require one (e.g. a local emulator).
func New(gw *gateway.Client, apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{gw: gw, apiKey: apiKey, logger: logger}
}

type authPayload struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *rawUser `json:"user"`
}

type rawUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata"`
}

type profileRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

// SignUpInput carries the fields accepted by the signup endpoint.
type SignUpInput struct {
	Email    string
	Password string
	Name     string
	WhatsApp string
}

// SignIn exchanges credentials for a session. A 4xx from the provider maps
// to AuthError; the provider already conflates unknown-email and
// wrong-password, and the message is passed through as-is.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.SessionUser, *domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.gw.Call(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, c.baseHeader(""))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, nil, c.authError(resp, "Invalid login credentials")
	}
	return decodeAuth(resp)
}

// SignUp registers a new account. The returned session is nil when the
// provider requires email verification before issuing one.
func (c *Client) SignUp(ctx context.Context, in SignUpInput) (*domain.SessionUser, *domain.Session, error) {
	meta := map[string]string{}
	if in.Name != "" {
		meta["name"] = in.Name
	}
	if in.WhatsApp != "" {
		meta["whatsapp"] = in.WhatsApp
	}
	body := map[string]interface{}{"email": in.Email, "password": in.Password, "data": meta}
	resp, err := c.gw.Call(ctx, http.MethodPost, "/auth/v1/signup", body, c.baseHeader(""))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, nil, c.authError(resp, "Sign up failed")
	}
	return decodeAuth(resp)
}

// VerifyOTP confirms an emailed one-time code and returns the session the
// provider issues on success.
func (c *Client) VerifyOTP(ctx context.Context, email, token, otpType string) (*domain.SessionUser, *domain.Session, error) {
	body := map[string]string{"email": email, "token": token, "type": otpType}
	resp, err := c.gw.Call(ctx, http.MethodPost, "/auth/v1/verify", body, c.baseHeader(""))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, nil, c.authError(resp, "Invalid or expired code")
	}
	return decodeAuth(resp)
}

// SessionUser answers "whose session is this token for".
func (c *Client) SessionUser(ctx context.Context, accessToken string) (*domain.SessionUser, *domain.Session, error) {
	user, err := retry.Do(ctx, func(ctx context.Context) (*rawUser, error) {
		resp, err := c.gw.Call(ctx, http.MethodGet, "/auth/v1/user", nil, c.baseHeader(accessToken))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &domain.AuthError{Message: "Session expired", StatusCode: resp.StatusCode}
		}
		if resp.StatusCode >= 400 {
			return nil, retry.Normalize(resp.StatusCode, resp.Body)
		}
		var u rawUser
		if err := resp.DecodeJSON(&u); err != nil {
			return nil, err
		}
		return &u, nil
	}, retry.DefaultMaxAttempts, retry.DefaultBaseDelay)
	if err != nil {
		return nil, nil, err
	}
	return user.toSessionUser(), &domain.Session{AccessToken: accessToken}, nil
}

// SignOut invalidates the session server-side. Callers treat failures as
// non-fatal.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.gw.Call(ctx, http.MethodPost, "/auth/v1/logout", nil, c.baseHeader(accessToken))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return retry.Normalize(resp.StatusCode, resp.Body)
	}
	return nil
}

// Profile fetches the richer profile row for a user, if one exists.
func (c *Client) Profile(ctx context.Context, userID, accessToken string) (*domain.SessionUser, error) {
	endpoint := "/rest/v1/profiles?id=eq." + userID + "&limit=1"
	resp, err := c.gw.Call(ctx, http.MethodGet, endpoint, nil, c.baseHeader(accessToken))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, retry.Normalize(resp.StatusCode, resp.Body)
	}
	var rows []profileRow
	if err := resp.DecodeJSON(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	p := rows[0]
	name := p.Name
	if name == "" {
		name = domain.NameFromEmail(p.Email)
	}
	return &domain.SessionUser{ID: p.ID, Name: name, Email: p.Email, WhatsApp: p.WhatsApp}, nil
}

// Products runs a built catalog query and returns the rows plus the exact
// total count reported by the provider.
func (c *Client) Products(ctx context.Context, q query.Query) ([]domain.Product, int, error) {
	type result struct {
		products []domain.Product
		total    int
	}
	out, err := retry.Do(ctx, func(ctx context.Context) (result, error) {
		header := c.baseHeader("")
		header.Set("Prefer", "count=exact")
		endpoint := "/rest/v1/products?" + q.Encode().Encode()
		resp, err := c.gw.Call(ctx, http.MethodGet, endpoint, nil, header)
		if err != nil {
			return result{}, err
		}
		if resp.StatusCode >= 400 {
			return result{}, retry.Normalize(resp.StatusCode, resp.Body)
		}
		var products []domain.Product
		if err := resp.DecodeJSON(&products); err != nil {
			return result{}, err
		}
		return result{products: products, total: totalFromContentRange(resp.Header.Get("Content-Range"), len(products))}, nil
	}, retry.DefaultMaxAttempts, retry.DefaultBaseDelay)
	if err != nil {
		return nil, 0, err
	}
	return out.products, out.total, nil
}

func (c *Client) baseHeader(accessToken string) http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

func (c *Client) authError(resp *gateway.Response, fallback string) error {
	norm := retry.Normalize(resp.StatusCode, resp.Body)
	msg := norm.Message
	if msg == "" || msg == "An unexpected error occurred" {
		msg = fallback
	}
	if resp.StatusCode >= 500 {
		return norm
	}
	return &domain.AuthError{Message: msg, StatusCode: resp.StatusCode}
}

func decodeAuth(resp *gateway.Response) (*domain.SessionUser, *domain.Session, error) {
	var payload authPayload
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, nil, err
	}
	if payload.User == nil {
		// Signup responses without an immediate session put the user at the
		// top level.
		var u rawUser
		if err := resp.DecodeJSON(&u); err != nil || u.ID == "" {
			return nil, nil, &domain.RetryableError{Message: "malformed auth response", StatusCode: resp.StatusCode}
		}
		return u.toSessionUser(), nil, nil
	}
	var session *domain.Session
	if payload.AccessToken != "" {
		session = &domain.Session{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
			ExpiresAt:    payload.ExpiresAt,
		}
	}
	return payload.User.toSessionUser(), session, nil
}

func (u *rawUser) toSessionUser() *domain.SessionUser {
	name := u.Metadata["name"]
	if name == "" {
		name = domain.NameFromEmail(u.Email)
	}
	return &domain.SessionUser{
		ID:       u.ID,
		Name:     name,
		Email:    u.Email,
		WhatsApp: u.Metadata["whatsapp"],
	}
}

func totalFromContentRange(header string, fallback int) int {
	// Content-Range: items 0-19/134
	if i := strings.LastIndexByte(header, '/'); i >= 0 {
		if n, err := strconv.Atoi(header[i+1:]); err == nil {
			return n
		}
	}
	return fallback
}
