package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

// maxSnapshotBytes bounds a /stats response body.
const maxSnapshotBytes = 1 << 20

// SnapshotFetcher returns the server's current stats snapshot.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (domain.StatsSnapshot, error)
}

// SnapshotClient polls GET /stats.
type SnapshotClient struct {
	statsURL string
	client   *http.Client
}

var _ SnapshotFetcher = (*SnapshotClient)(nil)

// NewSnapshotClient creates a client for serverURL. A nil client gets a
// default with a 5s timeout.
func NewSnapshotClient(serverURL string, client *http.Client) *SnapshotClient {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &SnapshotClient{
		statsURL: strings.TrimRight(serverURL, "/") + "/stats",
		client:   client,
	}
}

func (c *SnapshotClient) FetchSnapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statsURL, nil)
	if err != nil {
		return domain.StatsSnapshot{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.StatsSnapshot{}, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}

	var snapshot domain.StatsSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&snapshot); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}
