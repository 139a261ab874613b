package server

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func newTestApp(t *testing.T, agent AgentHandler) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{Logger: logger, Agent: agent})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	return app
}

func TestAppRoutesRequestsToAgent(t *testing.T) {
	var seenPath string
	app := newTestApp(t, AgentHandlerFunc(func(c fiber.Ctx) error {
		seenPath = string(c.Request().URI().Path())
		return c.SendString("ok")
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/songs/one.mp3", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if seenPath != "/songs/one.mp3" {
		t.Fatalf("agent saw wrong path: %s", seenPath)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestAppSkipsAgentForControlPaths(t *testing.T) {
	app := newTestApp(t, AgentHandlerFunc(func(c fiber.Ctx) error {
		t.Fatalf("agent should not see control paths")
		return nil
	}))
	app.Post("/-/message", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/-/message", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRequestIDPopulatedForAgent(t *testing.T) {
	app := newTestApp(t, AgentHandlerFunc(func(c fiber.Ctx) error {
		if RequestID(c) == "" {
			t.Fatalf("request id should be populated inside a request")
		}
		return c.SendString("ok")
	}))

	if _, err := app.Test(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
}
