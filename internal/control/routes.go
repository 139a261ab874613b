// Package control exposes the agent's command channel under the /-/ prefix:
// clear-all, forced health check, and the inert background-sync / push
// extension hooks. Every command maps onto an idempotent internal routine.
package control

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/health"
)

// 控制消息类型与后台同步标签是与外部约定的闭集。
const (
	MessageClearCache = "CLEAR_CACHE"
	MessageCheckCache = "CHECK_CACHE"
	SyncTagRefresh    = "cache-refresh"
)

// Options 聚合控制通道依赖。
type Options struct {
	Logger  *logrus.Logger
	Store   cachestore.Store
	Monitor *health.Monitor
}

type message struct {
	Type string `json:"type"`
}

type syncEvent struct {
	Tag string `json:"tag"`
}

// RegisterRoutes 在 Fiber 应用上挂载控制通道路由。必须在 server.NewApp 之后
// 调用，catch-all 会通过 c.Next() 把 /-/ 前缀的请求交到这里。
func RegisterRoutes(app *fiber.App, opts Options) error {
	if opts.Logger == nil || opts.Store == nil || opts.Monitor == nil {
		return errors.New("control routes need logger, store and monitor")
	}

	app.Post("/-/message", func(c fiber.Ctx) error {
		var msg message
		if err := json.Unmarshal(c.Body(), &msg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_message"})
		}

		switch msg.Type {
		case MessageClearCache:
			clearAll(opts)
			return c.JSON(fiber.Map{"success": true})
		case MessageCheckCache:
			opts.Monitor.Run()
			return c.JSON(fiber.Map{"success": true})
		default:
			// 未识别的消息类型按约定忽略。
			return c.SendStatus(fiber.StatusNoContent)
		}
	})

	app.Post("/-/sync", func(c fiber.Ctx) error {
		var event syncEvent
		if err := json.Unmarshal(c.Body(), &event); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_sync_event"})
		}
		if event.Tag != SyncTagRefresh {
			return c.SendStatus(fiber.StatusNoContent)
		}
		opts.Monitor.Run()
		return c.JSON(fiber.Map{"success": true})
	})

	app.Post("/-/push", func(c fiber.Ctx) error {
		// 推送只记录收到，不处理任何负载。
		opts.Logger.WithFields(logrus.Fields{
			"action": "push_received",
			"bytes":  len(c.Body()),
		}).Info("push notification logged")
		return c.SendStatus(fiber.StatusNoContent)
	})

	return nil
}

// clearAll 删除所有已知缓存层；单层失败记日志后继续。
func clearAll(opts Options) {
	names, err := opts.Store.ListTiers()
	if err != nil {
		opts.Logger.WithError(err).WithField("action", "clear_cache").Warn("tier enumeration failed")
		return
	}
	for _, name := range names {
		if _, err := opts.Store.DeleteTier(name); err != nil {
			opts.Logger.WithError(err).WithFields(logrus.Fields{
				"action": "clear_cache",
				"tier":   name,
			}).Warn("tier not removed")
		}
	}
	opts.Logger.WithFields(logrus.Fields{
		"action": "clear_cache",
		"tiers":  len(names),
	}).Info("all cache tiers cleared")
}
