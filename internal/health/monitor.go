// Package health audits the redundant cache tiers against the critical asset
// manifest and cross-heals a degraded tier from its healthy sibling. A tier
// is healthy when at least 80% of manifest entries are present with a success
// status. The Data tier is exempt from auditing and repair.
package health

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
	"github.com/wized2/offline-agent/internal/logging"
)

// healthyRatio 是判定健康的清单覆盖率下限。
const healthyRatio = 0.8

// Monitor 周期性审计 Primary/Secondary 的完整度并做读修复。
type Monitor struct {
	logger *logrus.Logger
	store  cachestore.Store
}

// New 构造 Monitor。
func New(logger *logrus.Logger, store cachestore.Store) *Monitor {
	return &Monitor{logger: logger, store: store}
}

// Run 执行一轮完整的健康检查：两个冗余层互为捐赠方，不健康的一方从健康
// 邻层逐条补齐清单条目。同步执行，外部触发（定时器/控制通道）共用此入口。
func (m *Monitor) Run() {
	pairs := []struct {
		tier  string
		donor string
	}{
		{assets.PrimaryTier, assets.SecondaryTier},
		{assets.SecondaryTier, assets.PrimaryTier},
	}

	for _, pair := range pairs {
		present := m.manifestCoverage(pair.tier)
		healthy := float64(present) >= healthyRatio*float64(len(assets.CriticalManifest))

		fields := logging.TierFields("health_check", pair.tier)
		fields["present"] = present
		fields["manifest"] = len(assets.CriticalManifest)
		fields["healthy"] = healthy
		m.logger.WithFields(fields).Info("health_verdict")

		if !healthy {
			m.repair(pair.tier, pair.donor)
		}
	}
}

// manifestCoverage 统计清单条目中在该层存在且状态成功的数量。
// 存储故障按缺失计，不中断审计。
func (m *Monitor) manifestCoverage(tierName string) int {
	tier, err := m.store.Open(tierName)
	if err != nil {
		m.logger.WithError(err).WithFields(logging.TierFields("health_open_failed", tierName)).Warn("tier unavailable, counting as empty")
		return 0
	}

	present := 0
	for _, raw := range assets.CriticalManifest {
		id := cachestore.NewIdentity(http.MethodGet, raw)
		snap, err := tier.Get(id)
		if err != nil {
			if !errors.Is(err, cachestore.ErrNotFound) {
				m.logger.WithError(err).WithFields(logging.TierFields("health_get_failed", tierName)).Warn("storage fault treated as missing entry")
			}
			continue
		}
		if snap.Success() {
			present++
		}
	}
	return present
}

// repair 从捐赠层把清单条目逐条复制进退化层。单条失败记日志后继续，
// 修复过程永不中止。
func (m *Monitor) repair(tierName, donorName string) {
	tier, err := m.store.Open(tierName)
	if err != nil {
		m.logger.WithError(err).WithFields(logging.TierFields("repair_open_failed", tierName)).Warn("cannot open degraded tier")
		return
	}
	donor, err := m.store.Open(donorName)
	if err != nil {
		m.logger.WithError(err).WithFields(logging.TierFields("repair_open_failed", donorName)).Warn("cannot open donor tier")
		return
	}

	copied := 0
	for _, raw := range assets.CriticalManifest {
		id := cachestore.NewIdentity(http.MethodGet, raw)
		snap, err := donor.Get(id)
		if err != nil {
			if !errors.Is(err, cachestore.ErrNotFound) {
				m.logger.WithError(err).WithFields(logging.TierFields("repair_read_failed", donorName)).Warn("skipping manifest entry")
			}
			continue
		}
		if err := tier.Put(id, snap.Clone()); err != nil {
			m.logger.WithError(err).WithFields(logging.TierFields("repair_write_failed", tierName)).Warn("skipping manifest entry")
			continue
		}
		copied++
	}

	fields := logging.TierFields("repair_complete", tierName)
	fields["donor"] = donorName
	fields["copied"] = copied
	m.logger.WithFields(fields).Info("tier repaired from donor")
}
