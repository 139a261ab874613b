package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/routine"
	"github.com/wized2/offline-agent/internal/server"
)

// Options 聚合 Agent 的全部依赖，便于在测试中注入替身。
type Options struct {
	Client          *http.Client
	Logger          *logrus.Logger
	Store           cachestore.Store
	Runner          *routine.Runner
	Origin          *url.URL
	RevalidateDelay time.Duration
}

// Agent 负责 orchestrate “网络优先 → 缓存层回退 → 合成响应” 的全流程，
// 对外暴露 Fiber handler，内部复用共享 http.Client 与层存储。
type Agent struct {
	client          *http.Client
	logger          *logrus.Logger
	store           cachestore.Store
	runner          *routine.Runner
	origin          *url.URL
	revalidateDelay time.Duration
}

// New 构造 Agent，所有依赖均为必填。
func New(opts Options) (*Agent, error) {
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("routine runner is required")
	}
	if opts.Origin == nil {
		return nil, errors.New("origin url is required")
	}
	delay := opts.RevalidateDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Agent{
		client:          opts.Client,
		logger:          opts.Logger,
		store:           opts.Store,
		runner:          opts.Runner,
		origin:          opts.Origin,
		revalidateDelay: delay,
	}, nil
}

// Handle 实现 server.AgentHandler。非 GET 请求直接透传上游；GET 请求按
// API/双层缓存两条策略分流，任何一条都保证给出响应。
func (a *Agent) Handle(c fiber.Ctx) error {
	requestURL := requestURLOf(c)
	if c.Method() != http.MethodGet {
		return a.passthrough(c, requestURL)
	}

	id := cachestore.NewIdentity(http.MethodGet, requestURL)
	if isAPIRequest(id.URL) {
		return a.handleAPI(c, id)
	}
	return a.handleDualCache(c, id)
}

// requestURLOf 拼出路径+查询串，作为请求标识的原料。
func requestURLOf(c fiber.Ctx) string {
	uri := c.Request().URI()
	raw := string(uri.Path())
	if query := uri.QueryString(); len(query) > 0 {
		raw += "?" + string(query)
	}
	return raw
}

// isAPIRequest 识别 “API 形态” 的请求：路径包含 /api/，或以 .json 结尾
// 且不是应用描述文件 manifest.json。
func isAPIRequest(url string) bool {
	clean := stripQuery(url)
	if strings.Contains(clean, "/api/") {
		return true
	}
	return strings.HasSuffix(clean, ".json") && path.Base(clean) != "manifest.json"
}

// isNavigation 判断页面导航请求：浏览器对文档的请求会声明接受 text/html。
func isNavigation(c fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), "text/html")
}

// audioExtensions 列出跳过后台再验证的媒体后缀，大文件重复拉取只浪费带宽。
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".ogg":  {},
	".m4a":  {},
	".flac": {},
	".aac":  {},
}

func isAudioURL(url string) bool {
	ext := strings.ToLower(path.Ext(stripQuery(url)))
	_, ok := audioExtensions[ext]
	return ok
}

func stripQuery(url string) string {
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		return url[:idx]
	}
	return url
}

// tier 返回指定层句柄；Open 幂等，失败视为存储故障由调用方记日志。
func (a *Agent) tier(name string) (cachestore.Tier, error) {
	return a.store.Open(name)
}

// tierGet 在指定层查找条目：未命中返回 nil，存储故障记日志后同样按未命中处理。
func (a *Agent) tierGet(name string, id cachestore.Identity) *cachestore.StoredResponse {
	tier, err := a.tier(name)
	if err != nil {
		a.logStorageFault("cache_open_failed", name, id, err)
		return nil
	}
	resp, err := tier.Get(id)
	if err != nil {
		if !errors.Is(err, cachestore.ErrNotFound) {
			a.logStorageFault("cache_get_failed", name, id, err)
		}
		return nil
	}
	return resp
}

// tierPut 向指定层写入条目，失败只记日志（存储故障不外溢）。写入成功返回 true。
func (a *Agent) tierPut(name string, id cachestore.Identity, resp *cachestore.StoredResponse) bool {
	tier, err := a.tier(name)
	if err != nil {
		a.logStorageFault("cache_open_failed", name, id, err)
		return false
	}
	if err := tier.Put(id, resp); err != nil {
		a.logStorageFault("cache_put_failed", name, id, err)
		return false
	}
	return true
}

func (a *Agent) logStorageFault(action, tier string, id cachestore.Identity, err error) {
	a.logger.WithError(err).WithFields(logrus.Fields{
		"action": action,
		"tier":   tier,
		"url":    id.URL,
	}).Warn("storage fault treated as miss")
}

// fetchOrigin 向上游发起真实请求。标识为绝对 URL 时直连，否则基于 Origin 解析。
// body 仅透传路径需要，缓存策略的 GET 请求传 nil。
func (a *Agent) fetchOrigin(ctx context.Context, id cachestore.Identity, header http.Header, body io.Reader, bypassCache bool) (*http.Response, error) {
	target := id.URL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		relative, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse request url: %w", err)
		}
		target = a.origin.ResolveReference(relative).String()
	}

	req, err := http.NewRequestWithContext(ctx, id.Method, target, body)
	if err != nil {
		return nil, err
	}
	if header != nil {
		server.CopyHeaders(req.Header, header)
		req.Header.Del("Accept-Encoding")
		req.Header.Del("Host")
	}
	if bypassCache {
		// 安装阶段强制新鲜读取，避免把过期内容钉进新层。
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
	return a.client.Do(req)
}

// snapshot 捕获响应的完整快照（状态、可透传头、正文），hop-by-hop 头被剔除。
func snapshot(resp *http.Response) (*cachestore.StoredResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	header := make(http.Header, len(resp.Header))
	server.CopyHeaders(header, resp.Header)
	header.Del("Content-Length")
	return &cachestore.StoredResponse{
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// passthrough 将非 GET 请求连同正文透传上游，失败时回复 502。
func (a *Agent) passthrough(c fiber.Ctx, requestURL string) error {
	id := cachestore.Identity{Method: c.Method(), URL: cachestore.CanonicalURL(requestURL)}
	resp, err := a.fetchOrigin(c.Context(), id, fiberHeadersAsHTTP(c), bytes.NewReader(c.Body()), false)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"action": "passthrough",
			"method": id.Method,
			"url":    id.URL,
		}).Warn("upstream unreachable")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_failed"})
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)
	_, copyErr := io.Copy(c.Response().BodyWriter(), resp.Body)
	return copyErr
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}

// probeOrder 以固定顺序返回兜底探测用的层名：Primary → Secondary → Data。
func probeOrder() []string {
	return []string{assets.PrimaryTier, assets.SecondaryTier, assets.DataTier}
}
