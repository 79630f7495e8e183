package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrF3lix/archre/service"
	"github.com/gin-gonic/gin"
)

// Events streams status transitions for one process as server-sent
// events. The first frame carries the current status so a client that
// reconnects after a missed transition is immediately consistent;
// dropped events are tolerable for the same reason.
func (h *ProcessHandler) Events(c *gin.Context) {
	id := c.Param("id")
	p := h.processForTenant(c, id)
	if p == nil {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	events, cancel := h.notifier.Subscribe(id)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	writeEvent(c, service.StatusEvent{
		ProcessID: p.ID,
		Status:    p.Status,
		ErrorKind: p.ErrorKind,
		At:        p.UpdatedAt,
	})
	flusher.Flush()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			writeEvent(c, ev)
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, ev service.StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: status\ndata: %s\n\n", data)
}
