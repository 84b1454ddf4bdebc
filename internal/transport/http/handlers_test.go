package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/processing/links"
)

const (
	testSecret      = "handler-test-secret"
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type memLinkRepo struct {
	mu      sync.Mutex
	byToken map[string]links.Link
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{byToken: map[string]links.Link{}}
}

func (m *memLinkRepo) Insert(_ context.Context, link *links.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byToken[link.Token]; exists {
		return links.ErrTokenTaken
	}
	m.byToken[link.Token] = *link
	return nil
}

func (m *memLinkRepo) FindByToken(_ context.Context, token string) (*links.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.byToken[token]
	if !ok {
		return nil, links.ErrNotFound
	}
	return &link, nil
}

func (m *memLinkRepo) FindByOwner(_ context.Context, ownerID string) ([]*links.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*links.Link
	for _, link := range m.byToken {
		if link.OwnerID == ownerID {
			l := link
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m *memLinkRepo) UpdateDestination(_ context.Context, token, destination string) (*links.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.byToken[token]
	if !ok {
		return nil, links.ErrNotFound
	}
	link.Destination = destination
	m.byToken[token] = link
	return &link, nil
}

func (m *memLinkRepo) DeleteByToken(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byToken[token]; !ok {
		return false, nil
	}
	delete(m.byToken, token)
	return true, nil
}

type memClickRepo struct {
	mu      sync.Mutex
	visits  []analytics.Visit
	buckets map[string]*analytics.DateClicks // token + "|" + date
}

func newMemClickRepo() *memClickRepo {
	return &memClickRepo{buckets: map[string]*analytics.DateClicks{}}
}

func (m *memClickRepo) RecordVisit(_ context.Context, visit analytics.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, visit)

	key := visit.Token + "|" + visit.Date
	bucket, ok := m.buckets[key]
	if !ok {
		bucket = &analytics.DateClicks{Date: visit.Date}
		m.buckets[key] = bucket
	}
	bucket.Total++
	bucket.Devices.Add(visit.Device, 1)
	return nil
}

func (m *memClickRepo) BucketsByTokens(_ context.Context, tokens []string) ([]analytics.DateClicks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := tokenSet(tokens)
	var out []analytics.DateClicks
	for key, bucket := range m.buckets {
		token, _, _ := strings.Cut(key, "|")
		if _, ok := want[token]; ok {
			out = append(out, *bucket)
		}
	}
	return out, nil
}

func (m *memClickRepo) TotalsByTokens(_ context.Context, tokens []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := tokenSet(tokens)
	totals := map[string]int64{}
	for key, bucket := range m.buckets {
		token, _, _ := strings.Cut(key, "|")
		if _, ok := want[token]; ok {
			totals[token] += bucket.Total
		}
	}
	return totals, nil
}

func (m *memClickRepo) VisitsByTokens(_ context.Context, tokens []string) ([]analytics.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := tokenSet(tokens)
	var out []analytics.Visit
	for _, v := range m.visits {
		if _, ok := want[v.Token]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memClickRepo) PurgeToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []analytics.Visit
	for _, v := range m.visits {
		if v.Token != token {
			kept = append(kept, v)
		}
	}
	m.visits = kept
	for key := range m.buckets {
		if t, _, _ := strings.Cut(key, "|"); t == token {
			delete(m.buckets, key)
		}
	}
	return nil
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

type testEnv struct {
	handler   http.Handler
	linkRepo  *memLinkRepo
	clickRepo *memClickRepo
	svc       *links.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Name = "linkpulse-test"
	cfg.Shortener.BaseURL = "http://sho.rt"
	cfg.Shortener.RedirectStatus = http.StatusFound
	cfg.Auth.JWTSecret = testSecret

	linkRepo := newMemLinkRepo()
	clickRepo := newMemClickRepo()

	svc := links.NewService(linkRepo, clickRepo, links.NewCryptoTokenGenerator(), links.DefaultTokenLength)
	recorder := analytics.NewRecorder(clickRepo)
	aggregator := analytics.NewAggregator(linkRepo, clickRepo)

	opts := RouterOptions{
		RedirectOptions: RedirectHandlerOptions{AsyncClick: false},
	}
	handler := NewRouterWithOptions(cfg, RouterDeps{
		LinkService: svc,
		Recorder:    recorder,
		Aggregator:  aggregator,
	}, opts)

	return &testEnv{handler: handler, linkRepo: linkRepo, clickRepo: clickRepo, svc: svc}
}

func bearerToken(t *testing.T, ownerID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

type envelope struct {
	Code  string          `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, env *testEnv, method, path, auth string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var resp envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func createLink(t *testing.T, env *testEnv, ownerID string, body map[string]any) linkResponse {
	t.Helper()

	rec, resp := doJSON(t, env, http.MethodPost, "/api/links", bearerToken(t, ownerID), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create link: got status %d, body %s", rec.Code, rec.Body.String())
	}

	var link linkResponse
	if err := json.Unmarshal(resp.Data, &link); err != nil {
		t.Fatalf("decode link response: %v", err)
	}
	return link
}

func TestCreateLink(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "example.com/landing",
		"remarks":     "campaign",
	})

	if len(link.Token) != links.DefaultTokenLength {
		t.Errorf("token length = %d, want %d", len(link.Token), links.DefaultTokenLength)
	}
	if link.OriginalURL != "http://example.com/landing" {
		t.Errorf("destination = %q, want scheme prefixed", link.OriginalURL)
	}
	if link.ShortenedURL != "http://sho.rt/"+link.Token {
		t.Errorf("shortenedUrl = %q", link.ShortenedURL)
	}
	if link.ExpirationDate != NoExpirationLabel {
		t.Errorf("expirationDate = %q, want %q", link.ExpirationDate, NoExpirationLabel)
	}
	if link.TotalClicks != 0 {
		t.Errorf("totalClicks = %d, want 0", link.TotalClicks)
	}
}

func TestCreateLink_WithExpiration(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl":      "https://example.com",
		"remarks":          "temp",
		"expirationInDays": 7,
	})

	if link.ExpirationDate == NoExpirationLabel {
		t.Fatal("expected a concrete expiration date")
	}
	expires, err := time.Parse(time.RFC3339, link.ExpirationDate)
	if err != nil {
		t.Fatalf("parse expirationDate: %v", err)
	}
	if until := time.Until(expires); until < 6*24*time.Hour || until > 8*24*time.Hour {
		t.Errorf("expiration %v not ~7 days out", until)
	}
}

func TestCreateLink_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		body      map[string]any
		wantCode  int
		wantError string
	}{
		{
			"invalid url",
			map[string]any{"originalUrl": "ftp://example.com", "remarks": "r"},
			http.StatusBadRequest,
			"INVALID_URL",
		},
		{
			"blank url",
			map[string]any{"originalUrl": "   ", "remarks": "r"},
			http.StatusBadRequest,
			"INVALID_URL",
		},
		{
			"missing remarks",
			map[string]any{"originalUrl": "https://example.com"},
			http.StatusBadRequest,
			"REMARK_REQUIRED",
		},
		{
			"zero expiration days",
			map[string]any{"originalUrl": "https://example.com", "remarks": "r", "expirationInDays": 0},
			http.StatusBadRequest,
			"INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doJSON(t, env, http.MethodPost, "/api/links", bearerToken(t, "alice"), tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			if resp.Error != tt.wantError {
				t.Errorf("got error %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestCreateLink_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env, http.MethodPost, "/api/links", "", map[string]any{
		"originalUrl": "https://example.com",
		"remarks":     "r",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestListLinks(t *testing.T) {
	env := newTestEnv(t)

	created := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com",
		"remarks":     "mine",
	})
	createLink(t, env, "bob", map[string]any{
		"originalUrl": "https://other.example.com",
		"remarks":     "not mine",
	})

	// Two clicks so the listing carries a live total.
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/"+created.Token, nil)
		req.Header.Set("User-Agent", uaChromeWindows)
		env.handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rec, resp := doJSON(t, env, http.MethodGet, "/api/links", bearerToken(t, "alice"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var listed []linkResponse
	if err := json.Unmarshal(resp.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d links, want 1", len(listed))
	}
	if listed[0].Token != created.Token {
		t.Errorf("token = %q, want %q", listed[0].Token, created.Token)
	}
	if listed[0].TotalClicks != 2 {
		t.Errorf("totalClicks = %d, want 2", listed[0].TotalClicks)
	}
}

func TestRedirect(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com/target",
		"remarks":     "r",
	})

	req := httptest.NewRequest(http.MethodGet, "/"+link.Token, nil)
	req.Header.Set("User-Agent", uaSafariIPhone)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/target" {
		t.Errorf("Location = %q", loc)
	}

	env.clickRepo.mu.Lock()
	defer env.clickRepo.mu.Unlock()
	if len(env.clickRepo.visits) != 1 {
		t.Fatalf("got %d visits, want 1", len(env.clickRepo.visits))
	}
	visit := env.clickRepo.visits[0]
	if visit.Token != link.Token {
		t.Errorf("visit token = %q, want %q", visit.Token, link.Token)
	}
	if visit.Device != analytics.DeviceMobile {
		t.Errorf("visit device = %q, want mobile", visit.Device)
	}
	bucket := env.clickRepo.buckets[link.Token+"|"+visit.Date]
	if bucket == nil || bucket.Total != 1 || bucket.Devices.Mobile != 1 {
		t.Errorf("bucket = %+v, want total 1 mobile 1", bucket)
	}
}

func TestRedirect_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/nosuch12", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRedirect_Expired(t *testing.T) {
	env := newTestEnv(t)

	expired := time.Now().UTC().Add(-time.Hour)
	link := &links.Link{
		Token:       "expired1",
		Destination: "https://example.com",
		OwnerID:     "alice",
		Remark:      "old",
		CreatedAt:   expired.Add(-24 * time.Hour),
		ExpiresAt:   &expired,
	}
	if err := env.linkRepo.Insert(context.Background(), link); err != nil {
		t.Fatalf("insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/expired1", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusGone)
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "LINK_EXPIRED" {
		t.Errorf("got error code %q, want LINK_EXPIRED", resp.Error)
	}
	if len(env.clickRepo.visits) != 0 {
		t.Errorf("expired redirect must not record a click, got %d visits", len(env.clickRepo.visits))
	}
}

func TestUpdateLink(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com/old",
		"remarks":     "r",
	})

	rec, resp := doJSON(t, env, http.MethodPut, "/api/links/"+link.Token, bearerToken(t, "alice"), map[string]any{
		"newOriginalUrl": "example.com/new",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var updated linkResponse
	if err := json.Unmarshal(resp.Data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.OriginalURL != "http://example.com/new" {
		t.Errorf("destination = %q, want normalized new URL", updated.OriginalURL)
	}
	if updated.Token != link.Token {
		t.Errorf("token changed on update: %q -> %q", link.Token, updated.Token)
	}
}

func TestUpdateLink_NotOwner(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com",
		"remarks":     "r",
	})

	rec, resp := doJSON(t, env, http.MethodPut, "/api/links/"+link.Token, bearerToken(t, "mallory"), map[string]any{
		"newOriginalUrl": "https://evil.example.com",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusForbidden)
	}
	if resp.Error != "FORBIDDEN" {
		t.Errorf("got error %q, want FORBIDDEN", resp.Error)
	}
}

func TestDeleteLink_Cascades(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com",
		"remarks":     "r",
	})

	req := httptest.NewRequest(http.MethodGet, "/"+link.Token, nil)
	req.Header.Set("User-Agent", uaChromeWindows)
	env.handler.ServeHTTP(httptest.NewRecorder(), req)

	rec, _ := doJSON(t, env, http.MethodDelete, "/api/links/"+link.Token, bearerToken(t, "alice"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	if len(env.clickRepo.visits) != 0 || len(env.clickRepo.buckets) != 0 {
		t.Errorf("click data not purged: %d visits, %d buckets", len(env.clickRepo.visits), len(env.clickRepo.buckets))
	}

	redirect := httptest.NewRequest(http.MethodGet, "/"+link.Token, nil)
	redirectRec := httptest.NewRecorder()
	env.handler.ServeHTTP(redirectRec, redirect)
	if redirectRec.Code != http.StatusNotFound {
		t.Errorf("redirect after delete: got status %d, want %d", redirectRec.Code, http.StatusNotFound)
	}
}

func TestDeleteLink_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env, http.MethodDelete, "/api/links/nosuch12", bearerToken(t, "alice"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAnalyticsClicks(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com",
		"remarks":     "r",
	})
	createLink(t, env, "bob", map[string]any{
		"originalUrl": "https://other.example.com",
		"remarks":     "r",
	})

	for _, ua := range []string{uaChromeWindows, uaSafariIPhone} {
		req := httptest.NewRequest(http.MethodGet, "/"+link.Token, nil)
		req.Header.Set("User-Agent", ua)
		env.handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rec, resp := doJSON(t, env, http.MethodGet, "/api/analytics/clicks", bearerToken(t, "alice"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var summary analytics.ClickSummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalClicks != 2 {
		t.Errorf("totalClicks = %d, want 2", summary.TotalClicks)
	}
	if summary.Devices.Desktop != 1 || summary.Devices.Mobile != 1 {
		t.Errorf("devices = %+v, want one desktop one mobile", summary.Devices)
	}
	if len(summary.DateWise) != 1 {
		t.Fatalf("got %d date buckets, want 1", len(summary.DateWise))
	}
	if summary.DateWise[0].Total != 2 {
		t.Errorf("date bucket total = %d, want 2", summary.DateWise[0].Total)
	}
}

func TestAnalyticsVisits(t *testing.T) {
	env := newTestEnv(t)

	link := createLink(t, env, "alice", map[string]any{
		"originalUrl": "https://example.com/page",
		"remarks":     "r",
	})

	req := httptest.NewRequest(http.MethodGet, "/"+link.Token, nil)
	req.Header.Set("User-Agent", uaSafariIPhone)
	env.handler.ServeHTTP(httptest.NewRecorder(), req)

	rec, resp := doJSON(t, env, http.MethodGet, "/api/analytics/visits", bearerToken(t, "alice"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var visits []visitResponse
	if err := json.Unmarshal(resp.Data, &visits); err != nil {
		t.Fatalf("decode visits: %v", err)
	}
	if len(visits) != 1 {
		t.Fatalf("got %d visits, want 1", len(visits))
	}
	if visits[0].Token != link.Token {
		t.Errorf("token = %q, want %q", visits[0].Token, link.Token)
	}
	if visits[0].OriginalURL != "https://example.com/page" {
		t.Errorf("originalUrl = %q", visits[0].OriginalURL)
	}
	if visits[0].Device != "mobile" {
		t.Errorf("device = %q, want mobile", visits[0].Device)
	}
}

func TestAnalytics_EmptyOwner(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := doJSON(t, env, http.MethodGet, "/api/analytics/clicks", bearerToken(t, "nobody"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	var summary analytics.ClickSummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalClicks != 0 || len(summary.DateWise) != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}

// stallingClickEnqueuer blocks inside EnqueueClick until released, recording
// what it was handed once it runs.
type stallingClickEnqueuer struct {
	release chan struct{}
	done    chan struct{}

	token   string
	visitor analytics.RequestContext
}

func (e *stallingClickEnqueuer) EnqueueClick(_ context.Context, token string, visitor analytics.RequestContext, _ time.Time) error {
	<-e.release
	e.token = token
	e.visitor = visitor
	close(e.done)
	return nil
}

func TestRedirect_OutboxEnqueueDoesNotDelayResponse(t *testing.T) {
	cfg := &config.Config{}
	cfg.Shortener.BaseURL = "http://sho.rt"
	cfg.Shortener.RedirectStatus = http.StatusFound

	linkRepo := newMemLinkRepo()
	clickRepo := newMemClickRepo()
	svc := links.NewService(linkRepo, clickRepo, links.NewCryptoTokenGenerator(), links.DefaultTokenLength)
	recorder := analytics.NewRecorder(clickRepo)

	link := &links.Link{
		Token:       "slowpipe",
		Destination: "https://example.com/target",
		OwnerID:     "alice",
		Remark:      "pipeline",
		CreatedAt:   time.Now().UTC(),
	}
	if err := linkRepo.Insert(context.Background(), link); err != nil {
		t.Fatalf("insert: %v", err)
	}

	enq := &stallingClickEnqueuer{
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	handler := NewRedirectHandler(cfg, svc, recorder, RedirectHandlerOptions{
		Outbox:       enq,
		ClickTimeout: time.Second,
	})

	req := httptest.NewRequest(http.MethodGet, "/slowpipe", nil)
	req.SetPathValue("token", "slowpipe")
	req.Header.Set("User-Agent", uaSafariIPhone)
	rec := httptest.NewRecorder()

	// The enqueuer has not been released yet; if the handler waited on it
	// this would deadlock instead of returning.
	handler.Redirect(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusFound)
	}
	if got := rec.Header().Get("Location"); got != "https://example.com/target" {
		t.Errorf("Location = %q", got)
	}

	close(enq.release)
	select {
	case <-enq.done:
	case <-time.After(time.Second):
		t.Fatal("enqueue never ran after the response was written")
	}

	if enq.token != "slowpipe" {
		t.Errorf("enqueued token = %q, want slowpipe", enq.token)
	}
	if enq.visitor.UserAgent != uaSafariIPhone {
		t.Errorf("enqueued user agent = %q", enq.visitor.UserAgent)
	}
}
