package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc", "abc", false},
		{"padded", "Bearer   abc  ", "abc", false},
		{"missing", "", "", true},
		{"basic", "Basic abc", "", true},
		{"blank", "Bearer   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticateLegacyKeyIsAdmin(t *testing.T) {
	p, ok := Authenticate("admin-key", "admin-key", nil)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, Write("board")))
	assert.True(t, HasAnyScope(p, Write("slots")))
}

func TestAuthenticateScopedToken(t *testing.T) {
	tokens := []TokenConfig{
		{Token: "display", Scopes: []string{"board:rw", " timers:rw ", ""}},
		{Token: "viewer", Scopes: []string{"events:ro", "slots:ro"}},
	}

	p, ok := Authenticate("display", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, Write("board")))
	assert.True(t, HasAnyScope(p, Read("board")), "write implies read")
	assert.True(t, HasAnyScope(p, Read("timers")))
	assert.False(t, HasAnyScope(p, Read("slots")))
	assert.NotContains(t, p.Scopes, "")

	p, ok = Authenticate("viewer", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, Read("events")))
	assert.False(t, HasAnyScope(p, Write("slots")))

	_, ok = Authenticate("nope", "admin-key", tokens)
	assert.False(t, ok)
	_, ok = Authenticate("", "", tokens)
	assert.False(t, ok, "empty key never matches an unset legacy key")
}

func TestHasAnyScopeWithNoRequirement(t *testing.T) {
	assert.True(t, HasAnyScope(Principal{}))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Token: "t"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t", p.Token)
}
