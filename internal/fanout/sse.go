package fanout

import (
	"net/http"
	"strings"

	"leadmarket_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Events streams hub messages as server-sent events. It expects
// httpkit.AuthRequired in front of it and joins the sectors listed in
// ?sectors=a,b.
func (t *Transport) Events() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.MustGetIdentity(c)
		if id == nil {
			return
		}
		sectors := parseSectors(c.Query("sectors"))
		if len(sectors) == 0 {
			httpkit.Error(c, http.StatusBadRequest, "VALIDATION", "sectors query parameter is required", nil)
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		conn := t.hub.Register(id.UserID())
		defer t.hub.Unregister(conn)
		t.hub.Join(conn, sectors)

		c.SSEvent("connected", gin.H{"userId": id.UserID(), "sectorIds": sectors})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case <-conn.Done():
				return
			case msg := <-conn.Messages():
				c.SSEvent(msg.Type, string(msg.Payload))
				c.Writer.Flush()
			}
		}
	}
}

func parseSectors(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
