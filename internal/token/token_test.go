package token

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)

	raw, err := m.Issue("user-1", "a@example.com", "Ann", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Email != "a@example.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	raw, err := NewManager("one", time.Hour).Issue("user-1", "a@example.com", "Ann", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewManager("two", time.Hour).Parse(raw); err != ErrInvalid {
		t.Fatalf("Parse error = %v, want ErrInvalid", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := m.Issue("user-1", "a@example.com", "Ann", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Parse(raw); err != ErrInvalid {
		t.Fatalf("Parse error = %v, want ErrInvalid", err)
	}
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "", ok: false},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "Bearer abc.def", want: "abc.def", ok: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := FromRequest(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FromRequest(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
