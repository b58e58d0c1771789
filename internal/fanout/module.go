package fanout

import (
	apphttp "leadmarket_backend/internal/http"
)

// Name returns the module identifier.
func (t *Transport) Name() string {
	return "realtime"
}

// RegisterRoutes mounts the websocket and SSE endpoints. The websocket route
// authenticates with its first frame, so it sits outside the auth middleware.
func (t *Transport) RegisterRoutes(ctx *apphttp.RouterContext) {
	realtime := ctx.V1.Group("/realtime")
	realtime.GET("/ws", t.WebSocket())
	realtime.GET("/events", ctx.AuthMiddleware, t.Events())
}

var _ apphttp.Module = (*Transport)(nil)
