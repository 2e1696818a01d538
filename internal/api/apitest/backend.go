// Package apitest runs an in-memory Daily Digest backend over httptest for
// tests of the client, session and controllers.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dailydigest/internal/domain"
)

type account struct {
	user     domain.User
	password string
	saved    []savedEntry
}

type savedEntry struct {
	articleID int64
	savedAt   time.Time
}

type queued struct {
	digest     domain.Digest
	readyAfter int
	started    bool
}

type failure struct {
	status int
	detail string
}

// Backend is a fake of the HTTP API. All methods are safe for concurrent use.
type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	tokens   map[string]string
	digests  []domain.Digest
	queue    map[domain.Edition]*queued
	failures map[string]failure
	calls    map[string]int
	lastReq  map[string]*http.Request
	latency  time.Duration
	nextID   int64
}

// NewServer starts a backend that is shut down when the test ends.
func NewServer(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		queue:    make(map[domain.Edition]*queued),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
		lastReq:  make(map[string]*http.Request),
		nextID:   1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", b.register)
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("GET /auth/me", b.authed(b.me))
	mux.HandleFunc("GET /digests/{$}", b.authed(b.listDigests))
	mux.HandleFunc("POST /digests/create/{edition}", b.authed(b.createDigest))
	mux.HandleFunc("GET /digests/latest/{edition}", b.authed(b.latestDigest))
	mux.HandleFunc("GET /digests/{id}", b.authed(b.getDigest))
	mux.HandleFunc("POST /articles/save", b.authed(b.saveArticle))
	mux.HandleFunc("DELETE /articles/save/{id}", b.authed(b.unsaveArticle))
	mux.HandleFunc("GET /articles/saved", b.authed(b.savedArticles))
	mux.HandleFunc("GET /articles/{id}", b.authed(b.getArticle))

	b.server = httptest.NewServer(b.middleware(mux))
	t.Cleanup(b.server.Close)
	return b
}

// URL is the base URL of the server.
func (b *Backend) URL() string { return b.server.URL }

// AddUser creates an account directly.
func (b *Backend) AddUser(email, password, fullName string) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, fullName)
}

func (b *Backend) addUserLocked(email, password, fullName string) domain.User {
	b.nextID++
	u := domain.User{
		ID:        b.nextID,
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: domain.NewTimestamp(time.Now().UTC()),
	}
	b.accounts[email] = &account{user: u, password: password}
	return u
}

// IssueToken returns a valid token for email without going through login.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.tokens[token] = email
	return token
}

// RevokeTokens invalidates every issued token.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// AddDigest publishes a digest immediately.
func (b *Backend) AddDigest(edition domain.Edition, articles ...domain.Article) domain.Digest {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.newDigestLocked(edition, articles)
	b.digests = append(b.digests, d)
	return d
}

// QueueDigest prepares the digest that a create-digest call for edition will
// produce. It becomes visible after readyAfter latest-digest requests that
// follow the create call.
func (b *Backend) QueueDigest(edition domain.Edition, readyAfter int, articles ...domain.Article) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue[edition] = &queued{digest: b.newDigestLocked(edition, articles), readyAfter: readyAfter}
}

func (b *Backend) newDigestLocked(edition domain.Edition, articles []domain.Article) domain.Digest {
	b.nextID++
	id := b.nextID
	now := time.Now().UTC()
	out := make([]domain.Article, len(articles))
	for i, a := range articles {
		if a.ID == 0 {
			b.nextID++
			a.ID = b.nextID
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = domain.NewTimestamp(now)
		}
		out[i] = a
	}
	return domain.Digest{
		ID:          id,
		Edition:     edition,
		Date:        domain.NewTimestamp(now),
		IsPublished: true,
		Articles:    out,
	}
}

// Fail forces every request matching "METHOD /path" to answer with status.
func (b *Backend) Fail(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, detail: detail}
}

// Recover removes a forced failure.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// SetLatency delays every response.
func (b *Backend) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d
}

// Calls returns how many requests hit "METHOD /path".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// LastRequest returns the most recent request for "METHOD /path", or nil.
func (b *Backend) LastRequest(route string) *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastReq[route]
}

// SavedIDs lists the article IDs saved by email, most recent first.
func (b *Backend) SavedIDs(email string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[email]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(acc.saved))
	for i := len(acc.saved) - 1; i >= 0; i-- {
		ids = append(ids, acc.saved[i].articleID)
	}
	return ids
}

// --- HTTP plumbing ---

func (b *Backend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls[route]++
		b.lastReq[route] = r.Clone(r.Context())
		f, failing := b.failures[route]
		latency := b.latency
		b.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, acc *account)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		email, valid := b.tokens[token]
		acc := b.accounts[email]
		b.mu.Unlock()
		if !ok || !valid || acc == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, acc)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// --- Handlers ---

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "email"}, "msg": "field required"}},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[reg.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	writeJSON(w, http.StatusOK, b.addUserLocked(reg.Email, reg.Password, reg.FullName))
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		writeDetail(w, http.StatusUnprocessableEntity, "Expected form data")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed form")
		return
	}
	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[email]
	if !ok || acc.password != password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	token := uuid.NewString()
	b.tokens[token] = email
	writeJSON(w, http.StatusOK, domain.Token{AccessToken: token, TokenType: "bearer"})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request, acc *account) {
	writeJSON(w, http.StatusOK, acc.user)
}

func (b *Backend) listDigests(w http.ResponseWriter, r *http.Request, acc *account) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	skip, err := strconv.Atoi(r.URL.Query().Get("skip"))
	if err != nil || skip < 0 {
		skip = 0
	}

	b.mu.Lock()
	sorted := append([]domain.Digest(nil), b.digests...)
	b.mu.Unlock()
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	out := []domain.DigestSummary{}
	for i := skip; i < len(sorted) && len(out) < limit; i++ {
		d := sorted[i]
		out = append(out, domain.DigestSummary{
			ID: d.ID, Edition: d.Edition, Date: d.Date, IsPublished: d.IsPublished, ArticleCount: len(d.Articles),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createDigest(w http.ResponseWriter, r *http.Request, acc *account) {
	edition, err := domain.ParseEdition(r.PathValue("edition"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Edition must be 'morning' or 'evening'")
		return
	}

	b.mu.Lock()
	if q, ok := b.queue[edition]; ok {
		q.started = true
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusAccepted, domain.Ack{
		Message: fmt.Sprintf("Digest creation for '%s' edition started in the background.", edition),
	})
}

func (b *Backend) latestDigest(w http.ResponseWriter, r *http.Request, acc *account) {
	edition, err := domain.ParseEdition(r.PathValue("edition"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Edition must be 'morning' or 'evening'")
		return
	}

	b.mu.Lock()
	if q, ok := b.queue[edition]; ok && q.started {
		if q.readyAfter <= 0 {
			b.digests = append(b.digests, q.digest)
			delete(b.queue, edition)
		} else {
			q.readyAfter--
		}
	}
	var latest *domain.Digest
	for i := range b.digests {
		d := &b.digests[i]
		if d.Edition == edition && (latest == nil || d.ID > latest.ID) {
			latest = d
		}
	}
	var out domain.Digest
	if latest != nil {
		out = b.decorateLocked(*latest, acc)
	}
	b.mu.Unlock()

	if latest == nil {
		writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("The '%s' digest is being created. Please check back in a moment.", edition))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getDigest(w http.ResponseWriter, r *http.Request, acc *account) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid digest id")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.digests {
		if d.ID == id {
			writeJSON(w, http.StatusOK, b.decorateLocked(d, acc))
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Digest not found")
}

// decorateLocked fills is_saved and the server-side category grouping.
func (b *Backend) decorateLocked(d domain.Digest, acc *account) domain.Digest {
	articles := make([]domain.Article, len(d.Articles))
	byCategory := make(map[string][]domain.Article)
	for i, a := range d.Articles {
		a.IsSaved = acc.hasSaved(a.ID)
		articles[i] = a
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}
	d.Articles = articles
	d.ArticlesByCategory = byCategory
	return d
}

func (acc *account) hasSaved(id int64) bool {
	for _, s := range acc.saved {
		if s.articleID == id {
			return true
		}
	}
	return false
}

func (b *Backend) findArticleLocked(id int64) (domain.Article, bool) {
	for _, d := range b.digests {
		for _, a := range d.Articles {
			if a.ID == id {
				return a, true
			}
		}
	}
	return domain.Article{}, false
}

func (b *Backend) saveArticle(w http.ResponseWriter, r *http.Request, acc *account) {
	var req domain.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.findArticleLocked(req.ArticleID); !ok {
		writeDetail(w, http.StatusNotFound, "Article not found")
		return
	}
	if acc.hasSaved(req.ArticleID) {
		writeDetail(w, http.StatusBadRequest, "Article already saved")
		return
	}
	acc.saved = append(acc.saved, savedEntry{articleID: req.ArticleID, savedAt: time.Now().UTC()})
	writeJSON(w, http.StatusOK, domain.Ack{Message: "Article saved successfully", ArticleID: req.ArticleID})
}

func (b *Backend) unsaveArticle(w http.ResponseWriter, r *http.Request, acc *account) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid article id")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range acc.saved {
		if s.articleID == id {
			acc.saved = append(acc.saved[:i], acc.saved[i+1:]...)
			writeJSON(w, http.StatusOK, domain.Ack{Message: "Article removed from saved list", ArticleID: id})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Article not in saved list")
}

func (b *Backend) savedArticles(w http.ResponseWriter, r *http.Request, acc *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.SavedArticle{}
	for i := len(acc.saved) - 1; i >= 0; i-- {
		s := acc.saved[i]
		a, ok := b.findArticleLocked(s.articleID)
		if !ok {
			continue
		}
		a.IsSaved = true
		out = append(out, domain.SavedArticle{Article: a, SavedAt: domain.NewTimestamp(s.savedAt)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getArticle(w http.ResponseWriter, r *http.Request, acc *account) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid article id")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, found := b.findArticleLocked(id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Article not found")
		return
	}
	a.IsSaved = acc.hasSaved(id)
	writeJSON(w, http.StatusOK, a)
}
