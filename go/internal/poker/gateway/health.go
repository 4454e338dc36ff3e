package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy        bool     `json:"healthy"`
	StoreConnected bool     `json:"store_connected"`
	NATSConnected  *bool    `json:"nats_connected,omitempty"`
	Connections    int      `json:"connections"`
	Errors         []string `json:"errors"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// connectedBus is implemented by buses with a network connection.
type connectedBus interface {
	IsConnected() bool
}

type HealthChecker struct {
	store pinger
	bus   Bus
	cm    *ConnectionManager
}

func NewHealthChecker(store pinger, bus Bus, cm *ConnectionManager) *HealthChecker {
	return &HealthChecker{store: store, bus: bus, cm: cm}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if err := h.store.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("store ping failed: %v", err))
	} else {
		status.StoreConnected = true
	}

	if nb, ok := h.bus.(connectedBus); ok {
		connected := nb.IsConnected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.cm != nil {
		status.Connections = h.cm.GetConnectionStats().TotalConnections
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
