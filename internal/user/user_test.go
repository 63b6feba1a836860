package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sdmusic/service/internal/middleware"
	"github.com/sdmusic/service/internal/token"
)

type memStore struct {
	byEmail map[string]*User
}

func newMemStore() *memStore {
	return &memStore{byEmail: make(map[string]*User)}
}

func (m *memStore) Create(_ context.Context, name, email, hash, role string) (*User, error) {
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrAlreadyExists
	}
	u := &User{ID: "u-" + email, Name: name, Email: email, Role: role, PasswordHash: hash, CreatedAt: time.Now()}
	m.byEmail[email] = u
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) SetRole(_ context.Context, email, role string) error {
	u, ok := m.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

func TestServiceNormalizesEmail(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	u, err := svc.Create(ctx, " Ann ", " Ann@Example.COM ", "hash", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "ann@example.com" || u.Name != "Ann" || u.Role != RoleUser {
		t.Fatalf("created = %+v", u)
	}

	if _, err := svc.Create(ctx, "Ann", "ann@example.com", "hash", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}

	if err := svc.PromoteToAdmin(ctx, "ANN@example.com"); err != nil {
		t.Fatalf("PromoteToAdmin: %v", err)
	}
	got, err := svc.GetByEmail(ctx, "ann@EXAMPLE.com")
	if err != nil || !got.IsAdmin() {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	if !svc.IsNotFound(svc.PromoteToAdmin(ctx, "ghost@example.com")) {
		t.Fatal("promoting unknown user should be not found")
	}
}

func TestGetMe(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	u, _ := svc.Create(context.Background(), "Ann", "ann@example.com", "secret-hash", RoleUser)

	tokens := token.NewManager("secret", time.Hour)
	raw, _ := tokens.Issue(u.ID, u.Email, u.Name, false)
	handler := middleware.RequireAuth(tokens)(http.HandlerFunc(NewHandler(svc).GetMe))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") {
		t.Fatal("password hash leaked in response")
	}
	var env struct {
		Data User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Email != "ann@example.com" {
		t.Fatalf("email = %q", env.Data.Email)
	}

	ghost, _ := tokens.Issue("u-ghost", "ghost@example.com", "Ghost", false)
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+ghost)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ghost status = %d, want 404", rec.Code)
	}
}
