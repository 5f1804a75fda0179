package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// SegmentCalling opens every announcement.
const SegmentCalling = "calling"

// segmentIDs lists every recorded segment.
var segmentIDs = func() []string {
	ids := []string{SegmentCalling, "normal", "priority", "n", "p"}
	for d := '0'; d <= '9'; d++ {
		ids = append(ids, string(d))
	}
	return ids
}()

var announcementSegments = func() map[string]struct{} {
	set := make(map[string]struct{}, len(segmentIDs))
	for _, id := range segmentIDs {
		set[id] = struct{}{}
	}
	return set
}()

// AnnouncementSegmentIDs returns every recorded segment identifier.
func AnnouncementSegmentIDs() []string {
	return append([]string(nil), segmentIDs...)
}

// IsAnnouncementSegment reports whether id names a recorded segment.
func IsAnnouncementSegment(id string) bool {
	_, ok := announcementSegments[id]
	return ok
}

// AnnouncementSegments returns the ordered segments that announce a call:
// the opening cue, the category cue, the letter cue and one cue per digit.
func AnnouncementSegments(displayCode string, category Category) ([]string, error) {
	if !category.IsValid() {
		return nil, apperrors.ErrInvalidCategory
	}
	if len(displayCode) < 2 || !strings.HasPrefix(displayCode, category.Letter()) {
		return nil, fmt.Errorf("display code %q does not match category %s", displayCode, category)
	}

	digits := displayCode[1:]
	segments := make([]string, 0, 3+len(digits))
	segments = append(segments,
		SegmentCalling,
		strings.ToLower(string(category)),
		strings.ToLower(category.Letter()),
	)
	for _, d := range digits {
		if d < '0' || d > '9' {
			return nil, fmt.Errorf("display code %q has a non-digit %q", displayCode, d)
		}
		segments = append(segments, string(d))
	}
	return segments, nil
}
