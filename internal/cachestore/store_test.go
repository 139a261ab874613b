package cachestore

import (
	"bytes"
	"net/http"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResponse(body string) *StoredResponse {
	return &StoredResponse{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/html"}},
		Body:     []byte(body),
		StoredAt: time.Now().UTC(),
	}
}

func TestTierPutAndGet(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open("primary-v2")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}

	id := NewIdentity("GET", "/index.html")
	if err := tier.Put(id, sampleResponse("shell")); err != nil {
		t.Fatalf("put error: %v", err)
	}

	got, err := tier.Get(id)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !bytes.Equal(got.Body, []byte("shell")) {
		t.Fatalf("body mismatch: %s", got.Body)
	}
	if got.Header.Get("Content-Type") != "text/html" {
		t.Fatalf("header mismatch: %v", got.Header)
	}
	if !got.Success() {
		t.Fatalf("expected success status, got %d", got.Status)
	}
}

func TestTierGetMissing(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open("primary-v2")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if _, err := tier.Get(NewIdentity("GET", "/missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTierPutOverwrites(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open("primary-v2")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}

	id := NewIdentity("GET", "/song.mp3")
	if err := tier.Put(id, sampleResponse("v1")); err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := tier.Put(id, sampleResponse("v2")); err != nil {
		t.Fatalf("put error: %v", err)
	}

	got, err := tier.Get(id)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if string(got.Body) != "v2" {
		t.Fatalf("expected overwrite, got %s", got.Body)
	}

	keys, err := tier.Keys()
	if err != nil {
		t.Fatalf("keys error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected a single key after overwrite, got %d", len(keys))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	first, err := store.Open("data-v1")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	id := NewIdentity("GET", "/api/tracks.json")
	if err := first.Put(id, sampleResponse(`{"tracks":[]}`)); err != nil {
		t.Fatalf("put error: %v", err)
	}

	second, err := store.Open("data-v1")
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if _, err := second.Get(id); err != nil {
		t.Fatalf("entry lost after reopen: %v", err)
	}
}

func TestDeleteTierRemovesEntries(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open("secondary-v2")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	id := NewIdentity("GET", "/icons/icon-512.png")
	if err := tier.Put(id, sampleResponse("png")); err != nil {
		t.Fatalf("put error: %v", err)
	}

	existed, err := store.DeleteTier("secondary-v2")
	if err != nil {
		t.Fatalf("delete tier error: %v", err)
	}
	if !existed {
		t.Fatalf("expected tier to have existed")
	}

	names, err := store.ListTiers()
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	for _, name := range names {
		if name == "secondary-v2" {
			t.Fatalf("tier still listed after delete")
		}
	}

	reopened, err := store.Open("secondary-v2")
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if _, err := reopened.Get(id); err != ErrNotFound {
		t.Fatalf("expected empty tier after delete, got %v", err)
	}
}

func TestDeleteTierMissing(t *testing.T) {
	store := newTestStore(t)
	existed, err := store.DeleteTier("primary-v1")
	if err != nil {
		t.Fatalf("delete tier error: %v", err)
	}
	if existed {
		t.Fatalf("tier should not have existed")
	}
}

func TestListTiersIncludesEmptyTiers(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"primary-v2", "secondary-v2", "data-v1"} {
		if _, err := store.Open(name); err != nil {
			t.Fatalf("open %s error: %v", name, err)
		}
	}

	names, err := store.ListTiers()
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 tiers, got %v", names)
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"index.html", "/index.html"},
		{"//a/../b", "/b"},
		{"/api/tracks.json?page=2", "/api/tracks.json?page=2"},
		{"https://use.fontawesome.com/releases/v5.15.4/css/all.css", "https://use.fontawesome.com/releases/v5.15.4/css/all.css"},
	}
	for _, tc := range cases {
		if got := CanonicalURL(tc.raw); got != tc.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestKeysParsesIdentities(t *testing.T) {
	store := newTestStore(t)
	tier, err := store.Open("primary-v2")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}

	ids := []Identity{
		NewIdentity("GET", "/"),
		NewIdentity("GET", "/agent.js"),
		NewIdentity("GET", "https://use.fontawesome.com/releases/v5.15.4/css/all.css"),
		// URL 含空格时标识仍须无损往返。
		NewIdentity("GET", "/tracks/My Song.mp3"),
	}
	for _, id := range ids {
		if err := tier.Put(id, sampleResponse("x")); err != nil {
			t.Fatalf("put error: %v", err)
		}
	}

	keys, err := tier.Keys()
	if err != nil {
		t.Fatalf("keys error: %v", err)
	}
	if len(keys) != len(ids) {
		t.Fatalf("expected %d keys, got %d", len(ids), len(keys))
	}
	seen := make(map[Identity]bool, len(keys))
	for _, key := range keys {
		seen[key] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("missing identity %+v", id)
		}
	}
}
