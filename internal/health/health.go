// Package health serves /healthz and /metrics for the controller.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bedwetter/bedwetter/internal/coordinator"
	"github.com/bedwetter/bedwetter/internal/notify"
	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

// Server exposes the controller's liveness and prometheus metrics.
type Server struct {
	pub      mqttbus.Publisher
	coord    *coordinator.Coordinator
	notifier *notify.MQTTNotifier
	registry *prometheus.Registry
}

func NewServer(pub mqttbus.Publisher, coord *coordinator.Coordinator, notifier *notify.MQTTNotifier, registry *prometheus.Registry) *Server {
	return &Server{pub: pub, coord: coord, notifier: notifier, registry: registry}
}

// Handler returns the HTTP mux with /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status           string  `json:"status"`
		MQTTConnected    bool    `json:"mqtt_connected"`
		Valve            string  `json:"valve"`
		LastNotifyErrorS float64 `json:"last_notify_error_age_sec"`
	}

	st := status{
		MQTTConnected:    s.pub != nil && s.pub.IsConnected(),
		Valve:            s.coord.State().String(),
		LastNotifyErrorS: s.notifier.LastErrorAge().Seconds(),
	}

	// Degraded rather than down when only notifications are failing: the
	// controller can still water without the broker.
	switch {
	case st.MQTTConnected && s.notifier.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}
