package domain_test

import (
	"testing"

	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementSegments(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category domain.Category
		want     []string
	}{
		{
			name:     "normal ticket",
			code:     "N001",
			category: domain.CategoryNormal,
			want:     []string{"calling", "normal", "n", "0", "0", "1"},
		},
		{
			name:     "priority ticket",
			code:     "P042",
			category: domain.CategoryPriority,
			want:     []string{"calling", "priority", "p", "0", "4", "2"},
		},
		{
			name:     "wide number",
			code:     "N1234",
			category: domain.CategoryNormal,
			want:     []string{"calling", "normal", "n", "1", "2", "3", "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.AnnouncementSegments(tt.code, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, id := range got {
				assert.True(t, domain.IsAnnouncementSegment(id), id)
			}
		})
	}
}

func TestAnnouncementSegments_Invalid(t *testing.T) {
	_, err := domain.AnnouncementSegments("P001", domain.CategoryNormal)
	assert.Error(t, err)

	_, err = domain.AnnouncementSegments("N0x1", domain.CategoryNormal)
	assert.Error(t, err)

	_, err = domain.AnnouncementSegments("N001", domain.Category("Other"))
	assert.Error(t, err)
}

func TestIsAnnouncementSegment(t *testing.T) {
	assert.True(t, domain.IsAnnouncementSegment("calling"))
	assert.True(t, domain.IsAnnouncementSegment("7"))
	assert.False(t, domain.IsAnnouncementSegment("../etc/passwd"))
	assert.False(t, domain.IsAnnouncementSegment("10"))
}

func TestAnnouncementSegmentIDs(t *testing.T) {
	ids := domain.AnnouncementSegmentIDs()

	assert.Len(t, ids, 15)
	assert.Contains(t, ids, "calling")
	assert.Contains(t, ids, "0")

	// The returned slice is a copy.
	ids[0] = "tampered"
	assert.Equal(t, "calling", domain.AnnouncementSegmentIDs()[0])
}
