// Package testutil provides an in-memory registry for tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/regdelta/registry"
)

// FakeRegistry speaks enough of the registry HTTP API V2 for client
// tests: manifest get/head/put/delete, blob head/get, and the two-step
// upload session. Blob presence is tracked per repository, matching the
// real protocol's scoping.
type FakeRegistry struct {
	mu        sync.RWMutex
	blobs     map[string]map[digest.Digest][]byte
	manifests map[string]map[string]manifestEntry
	uploads   map[string]string
	nextID    int

	// DeleteEnabled mirrors the registry's delete switch; disabled
	// registries answer manifest DELETE with 405.
	DeleteEnabled bool
}

type manifestEntry struct {
	mediaType string
	body      []byte
	dgst      digest.Digest
}

// NewFakeRegistry returns an empty registry with deletes enabled.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		blobs:         make(map[string]map[digest.Digest][]byte),
		manifests:     make(map[string]map[string]manifestEntry),
		uploads:       make(map[string]string),
		DeleteEnabled: true,
	}
}

// SeedImage stores an image's manifest under the tag and all its blobs,
// bypassing the HTTP surface.
func (f *FakeRegistry) SeedImage(repo, tag string, img *registry.TestImage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for dgst, content := range img.Blobs() {
		f.putBlobLocked(repo, dgst, content)
	}
	f.putManifestLocked(repo, tag, manifestEntry{
		mediaType: img.Manifest.MediaType,
		body:      img.Manifest.Raw,
		dgst:      img.Manifest.Digest,
	})
}

// PutBlob stores blob content for a repository, bypassing the upload
// protocol.
func (f *FakeRegistry) PutBlob(repo string, dgst digest.Digest, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putBlobLocked(repo, dgst, content)
}

// PutManifest stores a raw manifest addressable by tag and by digest,
// bypassing the HTTP surface.
func (f *FakeRegistry) PutManifest(repo, tag, mediaType string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putManifestLocked(repo, tag, manifestEntry{
		mediaType: mediaType,
		body:      raw,
		dgst:      digest.FromBytes(raw),
	})
}

// HasBlob reports whether the repository holds the blob.
func (f *FakeRegistry) HasBlob(repo string, dgst digest.Digest) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.blobs[repo][dgst]
	return ok
}

// ManifestDigest returns the digest a tag points at.
func (f *FakeRegistry) ManifestDigest(repo, tag string) (digest.Digest, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.manifests[repo][tag]
	if !ok {
		return "", false
	}
	return entry.dgst, true
}

// BlobCount returns the number of blobs stored for the repository.
func (f *FakeRegistry) BlobCount(repo string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.blobs[repo])
}

func (f *FakeRegistry) putBlobLocked(repo string, dgst digest.Digest, content []byte) {
	if f.blobs[repo] == nil {
		f.blobs[repo] = make(map[digest.Digest][]byte)
	}
	f.blobs[repo][dgst] = content
}

func (f *FakeRegistry) putManifestLocked(repo, ref string, entry manifestEntry) {
	if f.manifests[repo] == nil {
		f.manifests[repo] = make(map[string]manifestEntry)
	}
	f.manifests[repo][ref] = entry
	f.manifests[repo][entry.dgst.String()] = entry
}

// Handler returns the HTTP surface, for use with httptest.NewServer.
func (f *FakeRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}

		trimmed := strings.TrimPrefix(r.URL.Path, "/v2/")
		switch {
		case strings.Contains(trimmed, "/manifests/"):
			repo, ref, _ := strings.Cut(trimmed, "/manifests/")
			f.serveManifest(w, r, repo, ref)
		case strings.HasSuffix(trimmed, "/blobs/uploads/") && r.Method == http.MethodPost:
			repo := strings.TrimSuffix(trimmed, "/blobs/uploads/")
			f.startUpload(w, repo)
		case strings.Contains(trimmed, "/blobs/uploads/") && r.Method == http.MethodPut:
			repo, id, _ := strings.Cut(trimmed, "/blobs/uploads/")
			f.finishUpload(w, r, repo, id)
		case strings.Contains(trimmed, "/blobs/"):
			repo, dgst, _ := strings.Cut(trimmed, "/blobs/")
			f.serveBlob(w, r, repo, digest.Digest(dgst))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *FakeRegistry) serveManifest(w http.ResponseWriter, r *http.Request, repo, ref string) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		f.mu.RLock()
		entry, ok := f.manifests[repo][ref]
		f.mu.RUnlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", entry.mediaType)
		w.Header().Set("Docker-Content-Digest", entry.dgst.String())
		w.Header().Set("Content-Length", fmt.Sprint(len(entry.body)))
		if r.Method == http.MethodGet {
			_, _ = w.Write(entry.body)
		}

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		entry := manifestEntry{
			mediaType: r.Header.Get("Content-Type"),
			body:      body,
			dgst:      digest.FromBytes(body),
		}
		f.mu.Lock()
		f.putManifestLocked(repo, ref, entry)
		f.mu.Unlock()
		w.Header().Set("Docker-Content-Digest", entry.dgst.String())
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		if !f.DeleteEnabled {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		entry, ok := f.manifests[repo][ref]
		if ok {
			for key, e := range f.manifests[repo] {
				if e.dgst == entry.dgst {
					delete(f.manifests[repo], key)
				}
			}
		}
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeRegistry) serveBlob(w http.ResponseWriter, r *http.Request, repo string, dgst digest.Digest) {
	f.mu.RLock()
	content, ok := f.blobs[repo][dgst]
	f.mu.RUnlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.Header().Set("Content-Length", fmt.Sprint(len(content)))
	if r.Method == http.MethodGet {
		_, _ = w.Write(content)
	}
}

func (f *FakeRegistry) startUpload(w http.ResponseWriter, repo string) {
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = repo
	f.mu.Unlock()

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/uploads/%s", repo, id))
	w.WriteHeader(http.StatusAccepted)
}

func (f *FakeRegistry) finishUpload(w http.ResponseWriter, r *http.Request, repo, id string) {
	f.mu.Lock()
	_, ok := f.uploads[id]
	delete(f.uploads, id)
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	want := digest.Digest(r.URL.Query().Get("digest"))
	content, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if digest.FromBytes(content) != want {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.putBlobLocked(repo, want, content)
	f.mu.Unlock()

	w.Header().Set("Docker-Content-Digest", want.String())
	w.WriteHeader(http.StatusCreated)
}
