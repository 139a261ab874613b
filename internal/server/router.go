package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AgentHandler describes the component that answers intercepted requests. It
// allows injecting fake handlers during tests.
type AgentHandler interface {
	Handle(fiber.Ctx) error
}

// AgentHandlerFunc adapts a function to the AgentHandler interface.
type AgentHandlerFunc func(fiber.Ctx) error

// Handle makes AgentHandlerFunc satisfy AgentHandler.
func (f AgentHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Agent  AgentHandler
}

const contextKeyRequestID = "_agent_request_id"

// ControlPrefix 是控制通道/诊断路径前缀，该前缀下的请求不参与缓存策略。
const ControlPrefix = "/-/"

// NewApp builds the Fiber application with request-ID middleware and a
// catch-all route that hands every non-control request to the agent. Control
// routes are registered separately and matched via c.Next() fallthrough.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Agent == nil {
		return nil, errors.New("agent handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		if IsControlPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return opts.Agent.Handle(c)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 UUID，写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// IsControlPath reports whether the path belongs to the control channel.
func IsControlPath(path string) bool {
	return strings.HasPrefix(path, ControlPrefix)
}
