package agent

import (
	"net/http"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/logging"
)

// resolveFallback 为未命中缓存的请求寻找最佳替代。路径以 / 结尾、不含扩展名
// （疑似应用路由而非静态文件），或命中根/壳别名时，按 Primary → Secondary 的
// 顺序探测应用壳文档，首个命中即返回。
func (a *Agent) resolveFallback(id cachestore.Identity) *cachestore.StoredResponse {
	clean := stripQuery(id.URL)
	if strings.HasPrefix(clean, "http://") || strings.HasPrefix(clean, "https://") {
		return nil
	}

	routeLike := strings.HasSuffix(clean, "/") || !strings.Contains(path.Base(clean), ".")
	isAlias := clean == "/" || clean == assets.ShellPath

	if !routeLike && !isAlias {
		return nil
	}

	shellID := cachestore.NewIdentity(http.MethodGet, assets.ShellPath)
	return a.probeShellTiers(shellID)
}

// navigationFallback 按序探测三个壳别名，每个别名依次查 Primary 与 Secondary。
func (a *Agent) navigationFallback() *cachestore.StoredResponse {
	for _, alias := range assets.ShellAliases {
		id := cachestore.NewIdentity(http.MethodGet, alias)
		if snap := a.probeShellTiers(id); snap != nil {
			return snap
		}
	}
	return nil
}

func (a *Agent) probeShellTiers(id cachestore.Identity) *cachestore.StoredResponse {
	for _, name := range []string{assets.PrimaryTier, assets.SecondaryTier} {
		if snap := a.tierGet(name, id); snap != nil {
			return snap
		}
	}
	return nil
}

// offlineDocument 是所有回退都失败时给导航请求的兜底文档。
const offlineDocument = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>This page is not available without a network connection.</p>
</body>
</html>
`

// serveOffline 合成最终兜底响应：先在三层里找精确匹配，导航请求退化为静态
// 离线页，其余请求回复 404 Offline。
func (a *Agent) serveOffline(c fiber.Ctx, id cachestore.Identity) error {
	for _, name := range probeOrder() {
		if cached := a.tierGet(name, id); cached != nil {
			return a.serveStored(c, id, cached, "offline_probe", true)
		}
	}

	fields := logging.RequestFields(id.Method, id.URL, "offline", false)
	fields["action"] = "request"
	a.logger.WithFields(fields).Info("no cache available")

	if isNavigation(c) {
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(http.StatusOK).SendString(offlineDocument)
	}

	return c.Status(http.StatusNotFound).SendString("Offline")
}
