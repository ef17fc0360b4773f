package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/domain"
	"storefront-api/internal/gateway"
	"storefront-api/internal/query"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw := gateway.New(config.Config{
		Mode:        config.ModeProduction,
		APIBaseURL:  srv.URL,
		CallTimeout: 2 * time.Second,
	}, nil)
	return New(gw, "test-key", nil)
}

func jsonHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestSignInDecodesSession(t *testing.T) {
	var gotPath, gotGrant, gotKey string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotGrant = r.URL.Query().Get("grant_type")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "tok-1",
			"refresh_token": "ref-1",
			"expires_at": 1700000000,
			"user": {"id": "u1", "email": "a@b.com", "user_metadata": {"name": "Ada", "whatsapp": "+100"}}
		}`))
	}))

	user, sess, err := c.SignIn(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/auth/v1/token" || gotGrant != "password" || gotKey != "test-key" {
		t.Fatalf("unexpected request path=%s grant=%s apikey=%s", gotPath, gotGrant, gotKey)
	}
	if user.ID != "u1" || user.Name != "Ada" || user.WhatsApp != "+100" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if sess == nil || sess.AccessToken != "tok-1" || sess.RefreshToken != "ref-1" || sess.ExpiresAt != 1700000000 {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestSignInRejectionPassesProviderMessage(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusBadRequest, `{"error_description":"Invalid login credentials"}`))

	_, _, err := c.SignIn(context.Background(), "a@b.com", "wrong")
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Message != "Invalid login credentials" || ae.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected auth error: %+v", ae)
	}
}

func TestSignInEmptyEnvelopeUsesFallbackMessage(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusUnauthorized, `{}`))

	_, _, err := c.SignIn(context.Background(), "a@b.com", "wrong")
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Message != "Invalid login credentials" {
		t.Fatalf("expected fallback message, got %q", ae.Message)
	}
}

func TestSignInServerErrorIsRetryable(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusInternalServerError, `{"message":"db down"}`))

	_, _, err := c.SignIn(context.Background(), "a@b.com", "pw")
	var re *domain.RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("a 5xx must not read as a credential rejection, got %v", err)
	}
	if re.Message != "db down" || !re.Retryable() {
		t.Fatalf("unexpected retryable error: %+v", re)
	}
}

func TestSignUpWithoutSessionDecodesTopLevelUser(t *testing.T) {
	// Signup pending email verification: no session envelope, the user sits
	// at the top level.
	c := newTestClient(t, jsonHandler(http.StatusOK, `{"id":"u2","email":"new@b.com","user_metadata":{}}`))

	user, sess, err := c.SignUp(context.Background(), SignUpInput{Email: "new@b.com", Password: "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no session, got %+v", sess)
	}
	if user.ID != "u2" || user.Name != "new" {
		t.Fatalf("expected user with email local-part name, got %+v", user)
	}
}

func TestSessionUserExpiredIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{}`))
	}))

	_, _, err := c.SessionUser(context.Background(), "stale")
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Message != "Session expired" {
		t.Fatalf("unexpected message %q", ae.Message)
	}
	if calls != 1 {
		t.Fatalf("a rejected token must not be retried, got %d calls", calls)
	}
}

func TestProductsParsesContentRangeTotal(t *testing.T) {
	var gotPrefer, gotCategory string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotCategory = r.URL.Query().Get("category")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Range", "items 0-1/134")
		_, _ = w.Write([]byte(`[
			{"id":"p1","name":"Pixel 9","priceCents":79900,"currency":"USD"},
			{"id":"p2","name":"Pixel 8","priceCents":54900,"currency":"USD"}
		]`))
	}))

	q := query.Build(query.Filters{Category: "phones"}, 1, 2, "", "")
	products, total, err := c.Products(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPrefer != "count=exact" {
		t.Fatalf("expected exact count requested, got Prefer=%q", gotPrefer)
	}
	if gotCategory != "eq.phones" {
		t.Fatalf("query not forwarded, got category=%q", gotCategory)
	}
	if len(products) != 2 || products[0].ID != "p1" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if total != 134 {
		t.Fatalf("expected total 134 from Content-Range, got %d", total)
	}
}

func TestProductsMissingContentRangeFallsBackToPageLen(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK, `[{"id":"p1","name":"Pixel 9","priceCents":79900,"currency":"USD"}]`))

	_, total, err := c.Products(context.Background(), query.Build(query.Filters{}, 1, 20, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected page length fallback, got %d", total)
	}
}

func TestProfileMissingRowIsNotFound(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK, `[]`))

	_, err := c.Profile(context.Background(), "u1", "tok")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileNamelessRowFallsBackToEmail(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK, `[{"id":"u1","name":"","email":"carla@b.com"}]`))

	user, err := c.Profile(context.Background(), "u1", "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "carla" {
		t.Fatalf("expected email local-part fallback, got %q", user.Name)
	}
}

func TestTotalFromContentRange(t *testing.T) {
	cases := []struct {
		header   string
		fallback int
		want     int
	}{
		{"items 0-19/134", 3, 134},
		{"items */0", 3, 0},
		{"", 3, 3},
		{"items 0-19/garbage", 3, 3},
	}
	for _, tc := range cases {
		if got := totalFromContentRange(tc.header, tc.fallback); got != tc.want {
			t.Fatalf("totalFromContentRange(%q, %d) = %d, want %d", tc.header, tc.fallback, got, tc.want)
		}
	}
}
