package agent

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wized2/offline-agent/internal/assets"
)

func TestAPINetworkSuccessWritesDataTier(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"tracks":[1,2]}`)
	}))
	defer origin.Close()

	h := newHarness(t, origin.URL)
	resp := h.get(t, "/api/tracks.json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := readBody(t, resp); got != `{"tracks":[1,2]}` {
		t.Fatalf("unexpected body: %s", got)
	}

	h.runner.Wait()
	body, ok := h.tierBody(t, assets.DataTier, "/api/tracks.json")
	if !ok || body != `{"tracks":[1,2]}` {
		t.Fatalf("data tier not populated: %q (found=%v)", body, ok)
	}

	// API responses never land in the redundant shell tiers.
	if _, ok := h.tierBody(t, assets.PrimaryTier, "/api/tracks.json"); ok {
		t.Fatalf("api response should not populate primary")
	}
}

func TestAPINetworkFailureServesDataTier(t *testing.T) {
	h := newHarness(t, deadOrigin(t))
	h.seed(t, assets.DataTier, "/api/tracks.json", `{"tracks":[]}`)

	resp := h.get(t, "/api/tracks.json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := readBody(t, resp); got != `{"tracks":[]}` {
		t.Fatalf("expected cached json, got %s", got)
	}
	h.runner.Wait()
}

func TestAPIOfflineSynthesizesErrorBody(t *testing.T) {
	h := newHarness(t, deadOrigin(t))

	resp := h.get(t, "/api/tracks.json", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if got := readBody(t, resp); got != `{"error":"Offline"}` {
		t.Fatalf("unexpected body: %s", got)
	}
	h.runner.Wait()
}
