package upstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		registry string
		lookup   string
		want     bool
	}{
		{
			name:     "exact match",
			registry: "registry.example.com",
			lookup:   "registry.example.com",
			want:     true,
		},
		{
			name:     "scheme stripped from configured registry",
			registry: "https://registry.example.com",
			lookup:   "registry.example.com",
			want:     true,
		},
		{
			name:     "different host",
			registry: "registry.example.com",
			lookup:   "other.example.com",
			want:     false,
		},
		{
			name:     "hub aliases match each other",
			registry: "docker.io",
			lookup:   "registry-1.docker.io",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := StaticCredentials(tt.registry, "user", "pass")
			cred, err := store.Get(context.Background(), tt.lookup)
			require.NoError(t, err)
			if tt.want {
				assert.Equal(t, "user", cred.Username)
			} else {
				assert.Equal(t, auth.EmptyCredential, cred)
			}
		})
	}
}

func TestStaticCredentials_ReadOnly(t *testing.T) {
	t.Parallel()

	store := StaticCredentials("registry.example.com", "user", "pass")
	assert.Error(t, store.Put(context.Background(), "registry.example.com", auth.Credential{}))
	assert.Error(t, store.Delete(context.Background(), "registry.example.com"))
}

// recordingStore returns a fixed credential for one address and records
// lookups.
type recordingStore struct {
	address string
	cred    auth.Credential
	lookups []string
}

func (s *recordingStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	s.lookups = append(s.lookups, serverAddress)
	if serverAddress == s.address {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *recordingStore) Put(_ context.Context, _ string, _ auth.Credential) error { return nil }

func (s *recordingStore) Delete(_ context.Context, _ string) error { return nil }

var _ credentials.Store = (*recordingStore)(nil)

func TestHubFallbackStore(t *testing.T) {
	t.Parallel()

	t.Run("falls back to legacy hub addresses", func(t *testing.T) {
		t.Parallel()

		inner := &recordingStore{
			address: "https://index.docker.io/v1/",
			cred:    auth.Credential{Username: "hubuser", Password: "secret"},
		}
		store := &hubFallbackStore{store: inner}

		cred, err := store.Get(context.Background(), "registry-1.docker.io")
		require.NoError(t, err)
		assert.Equal(t, "hubuser", cred.Username)
		assert.Contains(t, inner.lookups, "https://index.docker.io/v1/")
	})

	t.Run("does not fall back for other registries", func(t *testing.T) {
		t.Parallel()

		inner := &recordingStore{}
		store := &hubFallbackStore{store: inner}

		cred, err := store.Get(context.Background(), "registry.example.com")
		require.NoError(t, err)
		assert.Equal(t, auth.EmptyCredential, cred)
		assert.Equal(t, []string{"registry.example.com"}, inner.lookups)
	})
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		c := New()
		require.NotNil(t, c)
		assert.Equal(t, "regdelta", c.userAgent)
		assert.False(t, c.plainHTTP)
		assert.Nil(t, c.credStore)
		require.NotNil(t, c.authClient)
	})

	t.Run("static credentials reach the auth client", func(t *testing.T) {
		t.Parallel()

		c := New(WithStaticCredentials("registry.example.com", "user", "pass"))
		cred, err := c.authClient.Credential(context.Background(), "registry.example.com")
		require.NoError(t, err)
		assert.Equal(t, "user", cred.Username)
	})

	t.Run("anonymous short-circuits credentials", func(t *testing.T) {
		t.Parallel()

		inner := &recordingStore{address: "registry.example.com", cred: auth.Credential{Username: "u"}}
		c := New(WithCredentialStore(inner), WithAnonymous())

		cred, err := c.authClient.Credential(context.Background(), "registry.example.com")
		require.NoError(t, err)
		assert.Equal(t, auth.EmptyCredential, cred)
		assert.Empty(t, inner.lookups)
	})
}
