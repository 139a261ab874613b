package agent

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/logging"
)

// handleAPI 是 API 请求的网络优先策略：成功即异步写入 Data 层并返回；
// 失败时在所有层里找精确匹配；最后合成 JSON 离线错误体，绝不向外失败。
func (a *Agent) handleAPI(c fiber.Ctx, id cachestore.Identity) error {
	resp, err := a.fetchOrigin(c.Context(), id, fiberHeadersAsHTTP(c), nil, false)
	if err == nil {
		snap, snapErr := snapshot(resp)
		resp.Body.Close()
		if snapErr == nil && snap.Success() {
			a.runner.Go("api_cache_populate", func() {
				a.tierPut(assets.DataTier, id, snap.Clone())
			})
			return a.serveStored(c, id, snap, "api_network", false)
		}
	}

	for _, name := range []string{assets.DataTier, assets.PrimaryTier, assets.SecondaryTier} {
		if cached := a.tierGet(name, id); cached != nil {
			return a.serveStored(c, id, cached, "api_cache", true)
		}
	}

	fields := logging.RequestFields(id.Method, id.URL, "api_offline", false)
	fields["action"] = "request"
	a.logger.WithFields(fields).Info("synthesized offline api response")

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(http.StatusServiceUnavailable).SendString(`{"error":"Offline"}`)
}
