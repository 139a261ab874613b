package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wized2/offline-agent/internal/assets"
	"github.com/wized2/offline-agent/internal/cachestore"
)

// scheduleRevalidate 在固定短延迟后于后台重新拉取条目，避免与正在返回的
// 响应争抢带宽。音频后缀整体跳过；拉取失败保持静默，成功则双层替换。
func (a *Agent) scheduleRevalidate(id cachestore.Identity) {
	if isAudioURL(id.URL) {
		return
	}

	delay := a.revalidateDelay
	a.runner.Go("revalidate", func() {
		time.Sleep(delay)

		resp, err := a.fetchOrigin(context.Background(), id, nil, nil, false)
		if err != nil {
			return
		}
		snap, snapErr := snapshot(resp)
		resp.Body.Close()
		if snapErr != nil || snap.Status != http.StatusOK {
			return
		}

		a.tierPut(assets.PrimaryTier, id, snap)
		a.tierPut(assets.SecondaryTier, id, snap.Clone())

		a.logger.WithFields(logrus.Fields{
			"action": "revalidate_complete",
			"url":    id.URL,
		}).Debug("entry refreshed in both tiers")
	})
}
