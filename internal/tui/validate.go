// ABOUTME: Health check for a laulau backend.
// ABOUTME: Confirms the address answers /healthz as a laulau service before setup saves it.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/laulau/internal/storage"
)

const checkTimeout = 10 * time.Second

// ErrNotLaulau means the address answered but is some other service.
var ErrNotLaulau = errors.New("that address does not look like a laulau backend")

// ValidateConnection requests GET <apiURL>/healthz and checks the service name.
func ValidateConnection(ctx context.Context, apiURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeAPIURL(apiURL)+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("bad backend URL: %w", err)
	}

	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("reading health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var health storage.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil || health.Service != storage.ServiceName {
		return ErrNotLaulau
	}
	if health.Status != "ok" {
		return fmt.Errorf("backend is %s", health.Status)
	}
	return nil
}
