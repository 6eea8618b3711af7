package upstream

import (
	"context"
	"errors"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// hubAddresses are the server addresses Docker Hub credentials may be
// stored under. Credential lookups for any of them try all of them.
var hubAddresses = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DefaultCredentialStore returns a credential store that reads from
// Docker config (~/.docker/config.json) and credential helpers.
func DefaultCredentialStore() (credentials.Store, error) {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}
	return &hubFallbackStore{store: store}, nil
}

// StaticCredentials returns a credential store with a single static
// credential for the given registry.
func StaticCredentials(registry, username, password string) credentials.Store {
	return &staticStore{
		registry: hostPort(registry),
		cred: auth.Credential{
			Username: username,
			Password: password,
		},
	}
}

// staticStore serves one credential for one registry.
type staticStore struct {
	registry string
	cred     auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	server := hostPort(serverAddress)
	if server == s.registry {
		return s.cred, nil
	}
	if isHubAddress(server) && isHubAddress(s.registry) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(_ context.Context, _ string, _ auth.Credential) error {
	return errors.New("static credential store is read-only")
}

func (s *staticStore) Delete(_ context.Context, _ string) error {
	return errors.New("static credential store is read-only")
}

// hubFallbackStore wraps a store and retries Docker Hub lookups under
// the alternative addresses Hub credentials get stored as.
type hubFallbackStore struct {
	store credentials.Store
}

func (s *hubFallbackStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.store.Get(ctx, serverAddress)
	if err == nil && cred != auth.EmptyCredential {
		return cred, nil
	}

	if isHubAddress(hostPort(serverAddress)) {
		for _, alt := range hubAddresses {
			if alt == serverAddress {
				continue
			}
			altCred, altErr := s.store.Get(ctx, alt)
			if altErr == nil && altCred != auth.EmptyCredential {
				return altCred, nil
			}
		}
	}

	return cred, err
}

func (s *hubFallbackStore) Put(ctx context.Context, serverAddress string, cred auth.Credential) error {
	return s.store.Put(ctx, serverAddress, cred)
}

func (s *hubFallbackStore) Delete(ctx context.Context, serverAddress string) error {
	return s.store.Delete(ctx, serverAddress)
}

// isHubAddress reports whether hostport names Docker Hub.
func isHubAddress(hostport string) bool {
	host, _, _ := strings.Cut(hostport, ":")
	switch host {
	case "docker.io", "registry-1.docker.io", "index.docker.io":
		return true
	}
	return false
}

// hostPort strips the scheme and path from a server address, keeping
// host and port for credential matching.
func hostPort(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr, _, _ = strings.Cut(addr, "/")
	return addr
}
