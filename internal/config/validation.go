package config

import (
	"errors"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if c.RevalidateDelay.DurationValue() <= 0 {
		return newFieldError("RevalidateDelay", "必须大于 0")
	}

	origin := strings.TrimSpace(c.Origin)
	if origin == "" {
		return newFieldError("Origin", "不能为空")
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return newFieldError("Origin", "必须是合法的 http(s) URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newFieldError("Origin", "仅支持 http/https")
	}
	c.Origin = strings.TrimRight(origin, "/")

	return nil
}

// OriginURL 返回解析完成的上游基地址，调用方应在 Validate 之后使用。
func (c *Config) OriginURL() (*url.URL, error) {
	return url.Parse(c.Origin)
}
