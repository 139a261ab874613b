package health

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Schedule 按 cron 表达式周期性运行 Monitor（默认每日一次），返回已启动的
// 调度器供调用方在退出时 Stop。panic 被就地吞掉，坏的一轮不影响下一轮。
func Schedule(spec string, monitor *Monitor, logger *logrus.Logger) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(logrus.Fields{
					"action": "health_check_panic",
					"panic":  rec,
				}).Error("health check aborted")
			}
		}()
		monitor.Run()
	})
	if err != nil {
		return nil, fmt.Errorf("invalid health schedule %q: %w", spec, err)
	}

	scheduler.Start()
	logger.WithFields(logrus.Fields{
		"action":   "health_schedule",
		"schedule": spec,
	}).Info("health check scheduled")
	return scheduler, nil
}
