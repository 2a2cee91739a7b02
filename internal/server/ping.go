// ping.go - Liveness endpoint and the optional self-ping loop.
package server

import (
	"context"
	"net/http"
	"time"
)

// pingHandler handles GET /ping. It takes no session: external
// monitors and the self-ping loop hit it without logging in.
func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"ts": time.Now().UTC().Format(time.RFC3339),
	})
}

// StartPingBot periodically requests the service's own /ping endpoint
// and logs the outcome, until ctx is cancelled. Keeps the process warm
// on hosts that idle out quiet services.
func StartPingBot(ctx context.Context, url string, interval time.Duration) {
	client := &http.Client{Timeout: 10 * time.Second}

	logInfo("pingbot_starting", map[string]any{"url": url, "interval": interval.String()})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logInfo("pingbot_stopped", nil)
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				logError("pingbot_request", nil, err)
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				logError("pingbot_unreachable", map[string]any{"url": url}, err)
				continue
			}
			_ = resp.Body.Close()
			logDebug("pingbot_alive", map[string]any{"status": resp.StatusCode})
		}
	}
}
