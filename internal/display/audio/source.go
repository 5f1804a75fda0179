package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

// SegmentExtension is the file extension of a segment recording.
const SegmentExtension = ".wav"

// maxSegmentBytes bounds a single recording download.
const maxSegmentBytes = 4 << 20

// ErrSegmentNotFound is returned when a source has no recording for a
// segment.
var ErrSegmentNotFound = errors.New("segment not found")

// Source fetches the raw WAV bytes of a segment.
type Source interface {
	Fetch(ctx context.Context, segment string) ([]byte, error)
}

var (
	_ Source = (*HTTPSource)(nil)
	_ Source = (*DirSource)(nil)
)

// HTTPSource downloads segments from the queue server's /audio route.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source for serverURL. A nil client gets a
// default with a 10s timeout.
func NewHTTPSource(serverURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(serverURL, "/") + "/audio/",
		client:  client,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, segment string) ([]byte, error) {
	if !domain.IsAnnouncementSegment(segment) {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+url.PathEscape(segment)+SegmentExtension, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch segment %q: %w", segment, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch segment %q: unexpected status %d", segment, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSegmentBytes))
	if err != nil {
		return nil, fmt.Errorf("read segment %q: %w", segment, err)
	}
	return data, nil
}

// DirSource reads segments from a directory, typically the same assets the
// server ships.
type DirSource struct {
	fsys fs.FS
}

// NewDirSource creates a source reading <segment>.wav files from fsys.
func NewDirSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

func (s *DirSource) Fetch(ctx context.Context, segment string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.IsAnnouncementSegment(segment) {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	}

	data, err := fs.ReadFile(s.fsys, segment+SegmentExtension)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	}
	if err != nil {
		return nil, fmt.Errorf("read segment %q: %w", segment, err)
	}
	return data, nil
}
