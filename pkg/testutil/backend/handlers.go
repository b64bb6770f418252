package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aiplatform/internal/models"
)

// MaxUploadBytes is the multipart limit the fake enforces.
const MaxUploadBytes = 10 << 20

func contextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

func usernameFrom(ctx context.Context) string {
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "validation failed",
			"data":    missingFields(req),
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.accounts[req.Username]; taken {
		writeError(w, http.StatusBadRequest, "username already exists")
		return
	}
	writeOK(w, "registered", b.addUserLocked(req, 100))
}

func missingFields(req models.RegisterRequest) map[string]string {
	out := map[string]string{}
	if req.Username == "" {
		out["username"] = "must not be blank"
	}
	if req.Email == "" {
		out["email"] = "must not be blank"
	}
	if req.Password == "" {
		out["password"] = "must not be blank"
	}
	return out
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	b.mu.Lock()
	acc, ok := b.accounts[req.Username]
	ttl := b.tokenTTL
	var user models.User
	if ok {
		user = acc.user
	}
	b.mu.Unlock()

	if !ok || acc.password != req.Password {
		writeError(w, http.StatusBadRequest, "invalid username or password")
		return
	}
	writeOK(w, "logged in", models.AuthResult{Token: issueToken(req.Username, ttl), User: &user})
}

func (b *Backend) currentUser(r *http.Request) (models.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[usernameFrom(r.Context())]
	if !ok {
		return models.User{}, false
	}
	return acc.user, true
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := b.currentUser(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "failed to load user")
		return
	}
	writeOK(w, "", u)
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	b.handleMe(w, r)
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if upd.Email != "" && !strings.Contains(upd.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[usernameFrom(r.Context())]
	if upd.Email != "" {
		acc.user.Email = upd.Email
	}
	if upd.FullName != "" {
		acc.user.FullName = upd.FullName
	}
	if upd.PhoneNumber != "" {
		acc.user.PhoneNumber = upd.PhoneNumber
	}
	if upd.AvatarURL != "" {
		acc.user.AvatarURL = upd.AvatarURL
	}
	acc.user.UpdatedAt = models.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	writeOK(w, "updated", acc.user)
}

func (b *Backend) handlePoints(w http.ResponseWriter, r *http.Request) {
	u, _ := b.currentUser(r)
	writeOK(w, "", u.Points)
}

func (b *Backend) handleTransactions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	u, _ := b.currentUser(r)
	b.mu.Lock()
	all := b.transactions[u.ID]
	b.mu.Unlock()

	// newest first
	items := make([]models.Transaction, 0, size)
	for i := len(all) - 1 - (page-1)*size; i >= 0 && len(items) < size; i-- {
		items = append(items, all[i])
	}
	writeOK(w, "", models.TransactionPage{Items: items, Total: len(all), Page: page, Size: size})
}

func (b *Backend) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeOK(w, "", b.functions)
}

func (b *Backend) handleFunctionPoints(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.functions))
	for name, fn := range b.functions {
		out[name] = fn.Points
	}
	writeOK(w, "", out)
}

func (b *Backend) handleProvider(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeOK(w, "", b.provider)
}

func (b *Backend) handleSwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	provider := req["provider"]
	if provider != models.ProviderOpenAI && provider != models.ProviderOllama {
		writeError(w, http.StatusBadRequest, "unsupported provider, expected openai or ollama")
		return
	}
	b.mu.Lock()
	b.provider = provider
	b.mu.Unlock()
	writeOK(w, "switched", "switched to "+provider)
}

func (b *Backend) handleProcess(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "function")
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	input := strings.TrimSpace(req["input"])
	if input == "" {
		writeError(w, http.StatusBadRequest, "input must not be empty")
		return
	}
	output, ok := b.charge(w, r, name, input)
	if !ok {
		return
	}
	writeOK(w, "processed", output)
}

func (b *Backend) handleMovieClip(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	file, header, err := r.FormFile("videoFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file must not be empty")
		return
	}
	defer file.Close()

	length, _ := strconv.Atoi(r.FormValue("targetLength"))
	switch {
	case r.FormValue("description") == "":
		writeError(w, http.StatusBadRequest, "clip description must not be empty")
		return
	case r.FormValue("clipType") == "":
		writeError(w, http.StatusBadRequest, "clip type must not be empty")
		return
	case r.FormValue("style") == "":
		writeError(w, http.StatusBadRequest, "clip style must not be empty")
		return
	case length <= 0:
		writeError(w, http.StatusBadRequest, "target length must be greater than 0")
		return
	}

	summary := header.Filename + ": " + r.FormValue("clipType") + "/" + r.FormValue("style") + " " + strconv.Itoa(length) + "s"
	plan, ok := b.charge(w, r, "movie-clip", summary)
	if !ok {
		return
	}
	writeOK(w, "clip planned", plan)
}

// charge deducts the function cost and records the ledger entry. A refused
// charge is answered with a success:false envelope.
func (b *Backend) charge(w http.ResponseWriter, r *http.Request, name, input string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn, ok := b.functions[name]
	if !ok || !fn.Enabled {
		writeError(w, http.StatusBadRequest, "function not available: "+name)
		return "", false
	}
	acc := b.accounts[usernameFrom(r.Context())]
	if acc.user.Points < fn.Points {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"code":    "INSUFFICIENT_POINTS",
			"error":   "insufficient points",
		})
		return "", false
	}
	acc.user.Points -= fn.Points
	b.transactions[acc.user.ID] = append(b.transactions[acc.user.ID], models.Transaction{
		ID:           int64(len(b.transactions[acc.user.ID]) + 1),
		UserID:       acc.user.ID,
		Type:         models.TransactionConsume,
		Amount:       -fn.Points,
		BalanceAfter: acc.user.Points,
		Description:  fn.DisplayName,
		AiFunction:   name,
		CreatedAt:    models.Timestamp{Time: time.Now().UTC().Truncate(time.Second)},
	})
	return "[" + name + "] " + input, true
}
