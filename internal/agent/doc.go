// Package agent implements the per-request cache orchestration: the
// dual-cache network-first strategy for page and asset requests, the separate
// network-first strategy for API requests, the fallback resolver that maps
// route-like misses onto the cached application shell, and the offline
// response synthesizer that guarantees every intercepted request is answered.
// Cache population and re-validation happen on detached background routines
// so the caller's response is never blocked on storage writes.
package agent
