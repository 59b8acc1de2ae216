package public

import "github.com/splitpos-next/internal/provider"

// Handler 前台接口处理器入口
// 说明：该处理器仅用于租户用户侧 API 与处理方回调。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
