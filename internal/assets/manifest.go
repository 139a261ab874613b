// Package assets carries the build-time constants of the offline agent: the
// versioned tier names, the critical asset manifest that defines tier health,
// the optional asset list, and the shell aliases used by navigation fallback.
// None of these are runtime-configurable; bumping a tier version here creates
// a fresh tier and orphans the previous one for cleanup at activation.
package assets

// 三个缓存层的带版本名称。修改版本号会产生全新的空层，旧层在激活阶段被回收。
const (
	PrimaryTier   = "primary-v2"
	SecondaryTier = "secondary-v2"
	DataTier      = "data-v1"
)

// ShellPath 是应用壳文档的规范路径，导航回退与安装共用。
const ShellPath = "/index.html"

// CriticalManifest 列出判定缓存层健康所必需的资源。顺序即安装顺序。
// 外链图标字体与本地资源同列（平铺的字符串列表，不做特殊处理）。
var CriticalManifest = []string{
	"/",
	ShellPath,
	"/manifest.json",
	"/icons/icon-512.png",
	"/agent.js",
	"https://use.fontawesome.com/releases/v5.15.4/css/all.css",
}

// OptionalAssets 在安装阶段机会性写入 Data 层，目前为空。
var OptionalAssets = []string{}

// ShellAliases 是导航回退按序探测的根文档别名。空串会被请求标识规范化为 "/"。
var ShellAliases = []string{ShellPath, "/", ""}

// CurrentTiers 返回当前有效的三个层名，供激活阶段做垃圾回收比对。
func CurrentTiers() []string {
	return []string{PrimaryTier, SecondaryTier, DataTier}
}

// IsCurrentTier 判断给定层名是否属于当前版本集合。
func IsCurrentTier(name string) bool {
	for _, tier := range CurrentTiers() {
		if tier == name {
			return true
		}
	}
	return false
}
