package hub

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/starcore/internal/metrics"
)

// Handler routes the hub endpoints:
//
//	GET /         liveness text
//	GET /hub      websocket upgrade
//	GET /metrics  Prometheus exposition, when reg is non-nil
func (h *Hub) Handler(reg *prometheus.Registry) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.serveIndex).Methods(http.MethodGet)
	r.HandleFunc("/hub", h.serveWS).Methods(http.MethodGet)
	if reg != nil {
		r.Handle("/metrics", metrics.Handler(reg)).Methods(http.MethodGet)
	}
	return r
}

func (h *Hub) serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "All engines running")
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(h.ids.Generate(), ws, h.logger)
	if !h.queue.Enqueue(event{Type: eventJoin, Conn: c}) {
		ws.Close()
		return
	}
	go c.writePump()
	go c.readPump(h.queue)
}
