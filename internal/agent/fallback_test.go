package agent

import (
	"net/http"
	"testing"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
)

func TestResolveFallbackPrefersPrimary(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	h.seed(t, assets.PrimaryTier, assets.ShellPath, "primary-shell")
	h.seed(t, assets.SecondaryTier, assets.ShellPath, "secondary-shell")

	snap := h.agent.resolveFallback(cachestore.NewIdentity(http.MethodGet, "/albums/"))
	if snap == nil {
		t.Fatalf("expected shell fallback")
	}
	if string(snap.Body) != "primary-shell" {
		t.Fatalf("tier order violated: %s", snap.Body)
	}
}

func TestResolveFallbackUsesSecondaryWhenPrimaryEmpty(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	h.seed(t, assets.SecondaryTier, assets.ShellPath, "secondary-shell")

	snap := h.agent.resolveFallback(cachestore.NewIdentity(http.MethodGet, "/playlists"))
	if snap == nil || string(snap.Body) != "secondary-shell" {
		t.Fatalf("expected secondary shell, got %v", snap)
	}
}

func TestResolveFallbackIgnoresStaticFiles(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	h.seed(t, assets.PrimaryTier, assets.ShellPath, "shell")

	if snap := h.agent.resolveFallback(cachestore.NewIdentity(http.MethodGet, "/cover.jpg")); snap != nil {
		t.Fatalf("static file miss should not resolve to shell")
	}
}

func TestResolveFallbackMatchesAliases(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	h.seed(t, assets.PrimaryTier, assets.ShellPath, "shell")

	for _, alias := range []string{"/", assets.ShellPath} {
		snap := h.agent.resolveFallback(cachestore.NewIdentity(http.MethodGet, alias))
		if snap == nil || string(snap.Body) != "shell" {
			t.Fatalf("alias %q did not resolve to shell", alias)
		}
	}
}

func TestNavigationFallbackProbesAliasesInOrder(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	// Only the root alias is cached; the shell path itself is absent.
	h.seed(t, assets.SecondaryTier, "/", "root-document")

	snap := h.agent.navigationFallback()
	if snap == nil || string(snap.Body) != "root-document" {
		t.Fatalf("expected root alias hit, got %v", snap)
	}
}

func TestNavigationFallbackAbsent(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	if snap := h.agent.navigationFallback(); snap != nil {
		t.Fatalf("expected no fallback with empty tiers")
	}
}
