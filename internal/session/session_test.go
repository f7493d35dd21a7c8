package session

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
	tu "github.com/desertthunder/spotstats/internal/testing"
)

// failingStore fails every call with err
type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) (*models.Session, error) { return nil, f.err }
func (f failingStore) Save(context.Context, *models.Session) error { return f.err }
func (f failingStore) Delete(context.Context, string) error { return f.err }
func (f failingStore) DeleteExpired(context.Context) (int64, error) { return 0, f.err }

func newTestManager(store Store) *Manager {
	var buf bytes.Buffer
	return NewManager(store, Options{TTL: time.Hour}, shared.NewLogger(&buf))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Save And Load", func(t *testing.T) {
		store := NewMemoryStore()
		record := models.NewSession("s1", time.Hour)
		record.Token = tu.ValidToken("access")

		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		loaded, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if loaded.Token.AccessToken != "access" {
			t.Errorf("expected access token, got %+v", loaded.Token)
		}

		loaded.Token.AccessToken = "mutated"
		again, _ := store.Load(ctx, "s1")
		if again.Token.AccessToken != "access" {
			t.Error("loaded records should not alias stored ones")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := NewMemoryStore().Load(ctx, "nope")
		if !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Rejects Invalid", func(t *testing.T) {
		if err := NewMemoryStore().Save(ctx, &models.Session{}); err == nil {
			t.Error("expected error for session without id")
		}
	})

	t.Run("Expiry And DeleteExpired", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save(ctx, models.NewSession("live", time.Hour))
		store.Save(ctx, models.NewSession("dead", -time.Minute))

		if _, err := store.Load(ctx, "dead"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expired session should not load, got %v", err)
		}

		n, err := store.DeleteExpired(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned session, got %d", n)
		}
		if store.Len() != 1 {
			t.Errorf("expected 1 remaining session, got %d", store.Len())
		}
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	newStored := func(t *testing.T) (*MemoryStore, *Session) {
		t.Helper()
		store := NewMemoryStore()
		return store, newSession(models.NewSession("s1", time.Hour), store, time.Hour, true)
	}

	t.Run("SetToken Writes Through", func(t *testing.T) {
		store, sess := newStored(t)

		if err := sess.SetToken(ctx, tu.ValidToken("a1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		record, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("session should be persisted: %v", err)
		}
		if record.Token.AccessToken != "a1" {
			t.Errorf("expected a1, got %s", record.Token.AccessToken)
		}
		if sess.IsNew() {
			t.Error("session should no longer be new once saved")
		}
	})

	t.Run("SetToken Rejects Empty Record", func(t *testing.T) {
		_, sess := newStored(t)

		err := sess.SetToken(ctx, &models.TokenRecord{})
		if !errors.Is(err, shared.ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Token Returns Copy", func(t *testing.T) {
		_, sess := newStored(t)
		sess.SetToken(ctx, tu.ValidToken("a1"))

		sess.Token().AccessToken = "changed"
		if sess.Token().AccessToken != "a1" {
			t.Error("Token should return a copy")
		}
	})

	t.Run("ClearToken", func(t *testing.T) {
		store, sess := newStored(t)
		sess.SetToken(ctx, tu.ValidToken("a1"))

		if err := sess.ClearToken(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		record, _ := store.Load(ctx, "s1")
		if record.Token != nil || sess.Token() != nil {
			t.Error("token should be cleared")
		}
	})

	t.Run("Pending Login Round Trip", func(t *testing.T) {
		store, sess := newStored(t)

		if err := sess.SetPendingLogin(ctx, "state", "verifier"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		state, verifier, err := sess.TakePendingLogin(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != "state" || verifier != "verifier" {
			t.Errorf("unexpected pending login %s %s", state, verifier)
		}

		record, _ := store.Load(ctx, "s1")
		if record.OAuthState != "" || record.Verifier != "" {
			t.Error("pending login should be cleared in the store")
		}

		state, _, _ = sess.TakePendingLogin(ctx)
		if state != "" {
			t.Error("pending login can only be taken once")
		}
	})

	t.Run("Destroy", func(t *testing.T) {
		store, sess := newStored(t)
		sess.SetToken(ctx, tu.ValidToken("a1"))

		if err := sess.Destroy(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Load(ctx, "s1"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Error("destroyed session should be removed from the store")
		}
		if !sess.Destroyed() || sess.Token() != nil {
			t.Error("destroyed session should hold no token")
		}
		if err := sess.SetToken(ctx, tu.ValidToken("a2")); err == nil {
			t.Error("writes after destroy should fail")
		}
	})

	t.Run("Store Failure Keeps Previous State", func(t *testing.T) {
		sess := newSession(models.NewSession("s1", time.Hour), failingStore{err: errors.New("down")}, time.Hour, true)

		err := sess.SetToken(ctx, tu.ValidToken("a1"))
		if !errors.Is(err, shared.ErrStoreFailed) {
			t.Errorf("expected ErrStoreFailed, got %v", err)
		}
		if sess.Token() != nil {
			t.Error("failed write should not change the in-memory record")
		}
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Middleware Creates Session", func(t *testing.T) {
		m := newTestManager(NewMemoryStore())

		var got *Session
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = FromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if got == nil || !got.IsNew() {
			t.Fatal("expected a new session in the request context")
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != DefaultCookieName || c.Value != got.ID() {
			t.Errorf("unexpected cookie %+v", c)
		}
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 3600 {
			t.Errorf("unexpected cookie attributes %+v", c)
		}
	})

	t.Run("Middleware Loads Existing Session", func(t *testing.T) {
		store := NewMemoryStore()
		record := models.NewSession("known", time.Hour)
		record.Token = tu.ValidToken("a1")
		store.Save(ctx, record)

		m := newTestManager(store)

		var got *Session
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = FromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "known"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		if got.ID() != "known" || got.IsNew() {
			t.Errorf("expected stored session, got %s", got.ID())
		}
		if got.Token().AccessToken != "a1" {
			t.Error("expected stored token")
		}
	})

	t.Run("Unknown Cookie Gets Fresh ID", func(t *testing.T) {
		m := newTestManager(NewMemoryStore())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "planted"})

		sess, err := m.Load(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.ID() == "planted" {
			t.Error("unknown session ids must not be adopted")
		}
	})

	t.Run("Store Unavailable", func(t *testing.T) {
		m := newTestManager(failingStore{err: errors.New("connection refused")})

		called := false
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "any"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if called {
			t.Error("handler should not run without a session")
		}
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("ClearCookie", func(t *testing.T) {
		m := newTestManager(NewMemoryStore())
		rec := httptest.NewRecorder()
		http.SetCookie(rec, &http.Cookie{Name: "theme", Value: "dark"})
		m.SetCookie(rec, "abc")
		m.ClearCookie(rec)

		cookies := rec.Result().Cookies()
		if len(cookies) != 2 {
			t.Fatalf("expected the other cookie and one session cookie, got %d", len(cookies))
		}
		if cookies[0].Name != "theme" {
			t.Errorf("unrelated cookie dropped: %+v", cookies[0])
		}
		if cookies[1].MaxAge >= 0 || cookies[1].Value != "" {
			t.Errorf("expected expired cookie, got %+v", cookies[1])
		}
	})

	t.Run("Janitor", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save(ctx, models.NewSession("dead", -time.Hour))
		m := newTestManager(store)

		jctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			m.Janitor(jctx, 5*time.Millisecond)
			close(done)
		}()

		deadline := time.Now().Add(2 * time.Second)
		for store.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-done

		if store.Len() != 0 {
			t.Errorf("expected expired session pruned, %d left", store.Len())
		}
	})

	t.Run("Open And Prune", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save(ctx, models.NewSession("live", time.Hour))
		store.Save(ctx, models.NewSession("dead", -time.Hour))
		m := newTestManager(store)

		if _, err := m.Open(ctx, "live"); err != nil {
			t.Errorf("expected live session, got %v", err)
		}
		if _, err := m.Open(ctx, "dead"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}

		n, err := m.Prune(ctx)
		if err != nil || n != 1 {
			t.Errorf("expected 1 pruned, got %d (%v)", n, err)
		}
	})

	t.Run("FromContext Empty", func(t *testing.T) {
		if _, ok := FromContext(ctx); ok {
			t.Error("expected no session in a bare context")
		}
	})
}
