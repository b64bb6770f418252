// Package backend is an in-process fake of the platform REST API for tests.
// It issues real HS256 JWTs, keeps users, points and a transaction ledger in
// memory, and can be told to fail the next calls to a route.
package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"aiplatform/internal/models"
)

var signingKey = []byte("backend-test-signing-key")

type account struct {
	user     models.User
	password string
}

// Backend is a running fake server. Its zero value is not usable; call New.
type Backend struct {
	server  *httptest.Server
	handler http.Handler

	mu           sync.Mutex
	nextID       int64
	accounts     map[string]*account
	revoked      map[string]bool
	functions    map[string]models.AiFunction
	provider     string
	transactions map[int64][]models.Transaction
	failures     map[string][]int
	hits         map[string]int
	tokenTTL     time.Duration
	lastHeaders  map[string]http.Header
}

// New starts a fake backend with the default function catalog.
func New() *Backend {
	b := &Backend{
		accounts:     make(map[string]*account),
		revoked:      make(map[string]bool),
		functions:    DefaultCatalog(),
		provider:     models.ProviderOpenAI,
		transactions: make(map[int64][]models.Transaction),
		failures:     make(map[string][]int),
		hits:         make(map[string]int),
		lastHeaders:  make(map[string]http.Header),
		tokenTTL:     time.Hour,
	}
	b.handler = b.router()
	b.server = httptest.NewServer(b.handler)
	return b
}

// URL is the API base URL, including the /api prefix.
func (b *Backend) URL() string { return b.server.URL + "/api" }

func (b *Backend) Close() { b.server.Close() }

// Handler serves the API without a network listener.
func (b *Backend) Handler() http.Handler { return b.handler }

// Client returns an HTTP client wired to the server.
func (b *Backend) Client() *http.Client { return b.server.Client() }

// DefaultCatalog mirrors the functions the hosted backend enables.
func DefaultCatalog() map[string]models.AiFunction {
	fn := func(name, display, desc string, points int, category string) models.AiFunction {
		return models.AiFunction{Name: name, DisplayName: display, Description: desc, Points: points, Enabled: true, Category: category}
	}
	return map[string]models.AiFunction{
		models.FunctionChat:             fn(models.FunctionChat, "AI Chat", "Conversational assistant", 1, "communication"),
		models.FunctionTextGeneration:   fn(models.FunctionTextGeneration, "Text Generation", "Generate prose from a prompt", 2, "generation"),
		models.FunctionCodeGeneration:   fn(models.FunctionCodeGeneration, "Code Generation", "Generate code from requirements", 3, "generation"),
		models.FunctionDocumentSummary:  fn(models.FunctionDocumentSummary, "Document Summary", "Summarize a document", 2, "analysis"),
		models.FunctionImageRecognition: fn(models.FunctionImageRecognition, "Image Recognition", "Describe an image", 3, "analysis"),
		models.FunctionMovieClip:        fn(models.FunctionMovieClip, "Movie Clip", "Plan a short cut of a video", 5, "media"),
	}
}

// AddUser registers an account directly and returns a copy of it.
func (b *Backend) AddUser(username, password string, points int) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(models.RegisterRequest{Username: username, Password: password, Email: username + "@example.com"}, points)
}

func (b *Backend) addUserLocked(req models.RegisterRequest, points int) models.User {
	b.nextID++
	now := models.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	u := models.User{
		ID:          b.nextID,
		Username:    req.Username,
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Points:      points,
		Role:        models.RoleUser,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.accounts[req.Username] = &account{user: u, password: req.Password}
	return u
}

// SetPoints overwrites a user's balance.
func (b *Backend) SetPoints(username string, points int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.accounts[username]; ok {
		acc.user.Points = points
	}
}

// Points returns a user's balance.
func (b *Backend) Points(username string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.accounts[username]; ok {
		return acc.user.Points
	}
	return 0
}

// SetFunction adds or replaces a catalog entry.
func (b *Backend) SetFunction(fn models.AiFunction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.functions[fn.Name] = fn
}

// WithTokenTTL changes the lifetime of tokens issued from now on.
func (b *Backend) WithTokenTTL(d time.Duration) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenTTL = d
	return b
}

// Revoke makes the server reject token with 401.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// FailNext makes the next len(statuses) calls to method+path answer with
// those statuses instead of being served. Path excludes the /api prefix.
func (b *Backend) FailNext(method, path string, statuses ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], statuses...)
}

// Hits counts calls to method+path, failed ones included.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

// LastHeader returns the headers of the most recent call to method+path.
func (b *Backend) LastHeader(method, path string) http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeaders[method+" "+path].Clone()
}

// Token issues a token for username as login would.
func (b *Backend) Token(username string) string {
	b.mu.Lock()
	ttl := b.tokenTTL
	b.mu.Unlock()
	return issueToken(username, ttl)
}

func issueToken(username string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        fmt.Sprintf("%d", now.UnixNano()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", b.handleRegister)
		r.Post("/auth/login", b.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get("/auth/me", b.handleMe)

			r.Get("/user/profile", b.handleProfile)
			r.Put("/user/profile", b.handleUpdateProfile)
			r.Get("/user/points", b.handlePoints)
			r.Get("/user/transactions", b.handleTransactions)

			r.Get("/ai/functions", b.handleFunctions)
			r.Get("/ai/functions/points", b.handleFunctionPoints)
			r.Get("/ai/provider", b.handleProvider)
			r.Post("/ai/provider/switch", b.handleSwitchProvider)
			r.Post("/ai/movie-clip", b.handleMovieClip)
			r.Post("/ai/{function}", b.handleProcess)
		})
	})
	return r
}

// record counts the call and serves any injected failure.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")

		b.mu.Lock()
		b.hits[key]++
		b.lastHeaders[key] = r.Header.Clone()
		var status int
		if queue := b.failures[key]; len(queue) > 0 {
			status = queue[0]
			b.failures[key] = queue[1:]
		}
		b.mu.Unlock()

		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return signingKey, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		b.mu.Lock()
		revoked := b.revoked[raw]
		_, exists := b.accounts[claims.Subject]
		b.mu.Unlock()
		if revoked || !exists {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), claims.Subject)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message, "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
