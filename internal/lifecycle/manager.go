// Package lifecycle governs the agent's install and activate phases: install
// pre-populates the cache tiers from the critical asset manifest, activate
// garbage-collects superseded tier versions. Both phases are best-effort; the
// agent always reaches the active state so it never leaves the host serving
// nothing.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/logging"
)

// State 表示生命周期阶段：Installing → Waiting → Active。
type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
)

// Manager 驱动安装与激活两个阶段，持有自己的上游访问能力。
type Manager struct {
	client *http.Client
	logger *logrus.Logger
	store  cachestore.Store
	origin *url.URL

	state atomic.Value // State
}

// New 构造 Manager，初始状态为 Installing。
func New(client *http.Client, logger *logrus.Logger, store cachestore.Store, origin *url.URL) *Manager {
	m := &Manager{
		client: client,
		logger: logger,
		store:  store,
		origin: origin,
	}
	m.state.Store(StateInstalling)
	return m
}

// State 返回当前生命周期阶段。
func (m *Manager) State() State {
	return m.state.Load().(State)
}

// Install 预填充三个缓存层：关键资产写入 Primary 与 Secondary，可选资产写入
// Data。三路写入相互独立，单项失败记日志后继续；安装从不失败，结束后立即
// 进入 Waiting（跳过等待旧实例退出的宽限期）。重复安装幂等（写入即覆盖）。
func (m *Manager) Install(ctx context.Context) {
	m.state.Store(StateInstalling)
	m.logger.WithFields(logging.TierFields("install_start", "")).Info("installing cache tiers")

	m.populate(ctx, assets.PrimaryTier, assets.CriticalManifest)
	m.populate(ctx, assets.SecondaryTier, assets.CriticalManifest)
	m.populate(ctx, assets.DataTier, assets.OptionalAssets)

	m.state.Store(StateWaiting)
	m.logger.WithFields(logging.TierFields("install_complete", "")).Info("activation readiness signaled")
}

// Activate 枚举现存层，删除不属于当前版本集合的层（回收旧版本），随后接管
// 全部流量。无论安装结果如何，激活总是成功。
func (m *Manager) Activate() {
	names, err := m.store.ListTiers()
	if err != nil {
		m.logger.WithError(err).WithFields(logging.TierFields("activate_list_failed", "")).Warn("tier enumeration failed, skipping cleanup")
	}
	for _, name := range names {
		if assets.IsCurrentTier(name) {
			continue
		}
		if _, err := m.store.DeleteTier(name); err != nil {
			m.logger.WithError(err).WithFields(logging.TierFields("activate_gc_failed", name)).Warn("stale tier not removed")
			continue
		}
		m.logger.WithFields(logging.TierFields("activate_gc", name)).Info("stale tier removed")
	}

	m.state.Store(StateActive)
	m.logger.WithFields(logging.TierFields("activate_complete", "")).Info("agent active")
}

// populate 把资产列表逐项写入指定层，每项失败都被吞掉并记日志。
func (m *Manager) populate(ctx context.Context, tierName string, urls []string) {
	tier, err := m.store.Open(tierName)
	if err != nil {
		m.logger.WithError(err).WithFields(logging.TierFields("install_open_failed", tierName)).Warn("tier unavailable, skipping population")
		return
	}

	written := 0
	for _, raw := range urls {
		id := cachestore.NewIdentity(http.MethodGet, raw)
		snap, err := m.fetchFresh(ctx, id)
		if err != nil {
			m.fieldsFor(tierName, id.URL).WithError(err).Warn("install_asset_failed")
			continue
		}
		if err := tier.Put(id, snap); err != nil {
			m.fieldsFor(tierName, id.URL).WithError(err).Warn("install_write_failed")
			continue
		}
		written++
	}

	fields := logging.TierFields("install_populate", tierName)
	fields["written"] = written
	fields["total"] = len(urls)
	m.logger.WithFields(fields).Info("tier populated")
}

// fetchFresh 绕过任何中间缓存强制新鲜读取，保证安装不会钉住过期内容。
func (m *Manager) fetchFresh(ctx context.Context, id cachestore.Identity) (*cachestore.StoredResponse, error) {
	target := id.URL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		relative, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse asset url: %w", err)
		}
		target = m.origin.ResolveReference(relative).String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	header := make(http.Header, len(resp.Header))
	for key, values := range resp.Header {
		header[key] = append([]string(nil), values...)
	}
	header.Del("Content-Length")

	return &cachestore.StoredResponse{
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

func (m *Manager) fieldsFor(tierName, url string) *logrus.Entry {
	fields := logging.TierFields("install", tierName)
	fields["url"] = url
	return m.logger.WithFields(fields)
}
