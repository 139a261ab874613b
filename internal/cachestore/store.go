package cachestore

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"
)

// Store 管理所有缓存层的打开、枚举与整层删除。Open 幂等，层不存在时创建。
type Store interface {
	// Open 返回指定层的句柄，不存在时创建；重复打开返回同一层。
	Open(name string) (Tier, error)

	// DeleteTier 删除整个层及其全部条目，返回该层先前是否存在。
	DeleteTier(name string) (bool, error)

	// ListTiers 枚举当前存在的所有层名。
	ListTiers() ([]string, error)

	// Close 释放底层数据库。
	Close() error
}

// Tier 是单个缓存层的句柄，所有写入都是幂等覆盖（同一 Identity 至多一条）。
type Tier interface {
	Name() string

	// Get 返回缓存条目，不存在时返回 ErrNotFound。
	Get(id Identity) (*StoredResponse, error)

	// Put 写入条目，已存在时覆盖。
	Put(id Identity, resp *StoredResponse) error

	// Delete 删除条目，条目不存在不算错误。
	Delete(id Identity) error

	// Keys 枚举层内全部请求标识。
	Keys() ([]Identity, error)
}

// Identity 是缓存键：HTTP 方法 + URL（仅 GET 会被缓存）。
// 同源请求规范化为净化后的路径；跨域资源保留完整绝对 URL。
type Identity struct {
	Method string
	URL    string
}

// NewIdentity 构造规范化的请求标识。空路径与 "." 归一为 "/"。
func NewIdentity(method, rawURL string) Identity {
	return Identity{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		URL:    CanonicalURL(rawURL),
	}
}

// CanonicalURL 将同源路径净化为以 / 开头的规范形式，绝对 URL 原样保留。
func CanonicalURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	trimmed := raw
	var query string
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		query = trimmed[idx:]
		trimmed = trimmed[:idx]
	}
	clean := path.Clean("/" + trimmed)
	return clean + query
}

// StoredResponse 是写入时刻捕获的响应快照。
type StoredResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Success 报告该快照是否为成功响应，健康检查与回退链以此为准。
func (r *StoredResponse) Success() bool {
	return r != nil && r.Status == http.StatusOK
}

// Clone 返回条目的深拷贝，跨层复制（晋升/修复）时使用，避免共享底层切片。
func (r *StoredResponse) Clone() *StoredResponse {
	if r == nil {
		return nil
	}
	clone := &StoredResponse{
		Status:   r.Status,
		Header:   make(http.Header, len(r.Header)),
		Body:     append([]byte(nil), r.Body...),
		StoredAt: r.StoredAt,
	}
	for key, values := range r.Header {
		clone.Header[key] = append([]string(nil), values...)
	}
	return clone
}

// ErrNotFound 表示缓存未命中，属于正常分支信号而非故障。
var ErrNotFound = errors.New("cache entry not found")
