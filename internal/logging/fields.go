package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 method/path/策略/命中状态字段，供请求处理日志复用。
func RequestFields(method, path, strategy string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"method":    method,
		"path":      path,
		"strategy":  strategy,
		"cache_hit": cacheHit,
	}
}

// TierFields 提供缓存层维度的字段，供安装/健康检查日志复用。
func TierFields(action, tier string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"tier":   tier,
	}
}
