package agent

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/logging"
	"github.com/wized2/offline-agent/internal/server"
)

// handleDualCache 执行双层缓存决策序列，首个成功分支即返回：
// 网络 → Primary 命中 → Secondary 命中（晋升）→ 壳回退 → 导航回退 → 合成响应。
func (a *Agent) handleDualCache(c fiber.Ctx, id cachestore.Identity) error {
	resp, err := a.fetchOrigin(c.Context(), id, fiberHeadersAsHTTP(c), nil, false)
	if err == nil && resp.StatusCode == http.StatusOK {
		snap, snapErr := snapshot(resp)
		resp.Body.Close()
		if snapErr == nil {
			a.writeBothAsync(id, snap)
			return a.serveStored(c, id, snap, "network", false)
		}
		a.logger.WithError(snapErr).WithFields(logrus.Fields{
			"action": "network_read_failed",
			"url":    id.URL,
		}).Warn("treating truncated upstream body as network failure")
	} else if err == nil {
		// 非 200 与网络拒绝同样落入缓存回退链。
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	if cached := a.tierGet(assets.PrimaryTier, id); cached != nil {
		a.scheduleRevalidate(id)
		return a.serveStored(c, id, cached, "primary", true)
	}

	if cached := a.tierGet(assets.SecondaryTier, id); cached != nil {
		a.promote(id, cached)
		return a.serveStored(c, id, cached, "secondary", true)
	}

	if fallback := a.resolveFallback(id); fallback != nil {
		return a.serveStored(c, id, fallback, "shell_fallback", true)
	}

	if isNavigation(c) {
		if shell := a.navigationFallback(); shell != nil {
			return a.serveStored(c, id, shell, "navigation_fallback", true)
		}
	}

	return a.serveOffline(c, id)
}

// writeBothAsync 把网络响应异步写入 Primary 与 Secondary 两层。两次写入相互
// 独立，单层失败不影响另一层；全部失败只记日志，绝不影响已返回的响应。
func (a *Agent) writeBothAsync(id cachestore.Identity, snap *cachestore.StoredResponse) {
	a.runner.Go("cache_populate", func() {
		primaryOK := a.tierPut(assets.PrimaryTier, id, snap)
		secondaryOK := a.tierPut(assets.SecondaryTier, id, snap.Clone())
		if !primaryOK && !secondaryOK {
			a.logger.WithFields(logrus.Fields{
				"action": "cache_populate_failed",
				"url":    id.URL,
			}).Warn("both tiers rejected the write")
		}
	})
}

// promote 将 Secondary 命中写透进 Primary，加速后续查找。
func (a *Agent) promote(id cachestore.Identity, cached *cachestore.StoredResponse) {
	if !a.tierPut(assets.PrimaryTier, id, cached.Clone()) {
		return
	}
	a.logger.WithFields(logrus.Fields{
		"action": "cache_promote",
		"url":    id.URL,
	}).Debug("secondary entry promoted into primary")
}

// serveStored 把缓存快照（或刚捕获的网络快照）写回客户端。
func (a *Agent) serveStored(c fiber.Ctx, id cachestore.Identity, snap *cachestore.StoredResponse, strategy string, cacheHit bool) error {
	copyResponseHeaders(c, snap.Header)
	c.Set("X-Agent-Cache", strategy)
	if requestID := server.RequestID(c); requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(snap.Status)

	fields := logging.RequestFields(id.Method, id.URL, strategy, cacheHit)
	fields["action"] = "request"
	fields["status"] = snap.Status
	a.logger.WithFields(fields).Info("request_complete")

	return c.Send(snap.Body)
}
