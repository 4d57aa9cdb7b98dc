package timeline

import (
	"testing"
	"time"

	"groundz/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func mkReview(createdAt time.Time) *store.Review {
	return &store.Review{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Title:     "Moka Pot",
		Rating:    4.5,
		Category:  "product",
		Status:    "published",
		CreatedAt: createdAt,
	}
}

func mkUpdate(review *store.Review, createdAt time.Time, comment string) store.ReviewUpdate {
	return store.ReviewUpdate{
		ID:        uuid.New(),
		ReviewID:  review.ID,
		UserID:    review.UserID,
		Comment:   comment,
		CreatedAt: createdAt,
	}
}

func TestAssembleReviewWithoutUpdates(t *testing.T) {
	review := mkReview(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	entries := Assemble(review, nil)

	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsLatest, "a lone initial entry is never latest")
	assert.Equal(t, "Started using Moka Pot. Initial impressions.", entries[0].Content)
	require.NotNil(t, entries[0].Rating)
	assert.Equal(t, 4.5, *entries[0].Rating)
}

func TestAssembleMarksLastUpdateLatest(t *testing.T) {
	review := mkReview(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	update := mkUpdate(review, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "Still great")

	entries := Assemble(review, []store.ReviewUpdate{update})

	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsLatest)
	assert.True(t, entries[1].IsLatest)
	assert.Equal(t, "Still great", entries[1].Content)
}

func TestAssembleSortsUnsortedInput(t *testing.T) {
	review := mkReview(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	review.Description = strPtr("First week with it")

	// storage returns newest-first
	updates := []store.ReviewUpdate{
		mkUpdate(review, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "Month four"),
		mkUpdate(review, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Month three"),
		mkUpdate(review, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "Month two"),
	}

	entries := Assemble(review, updates)

	require.Len(t, entries, 4)
	assert.Equal(t, "First week with it", entries[0].Content)
	assert.Equal(t, "Month two", entries[1].Content)
	assert.Equal(t, "Month three", entries[2].Content)
	assert.Equal(t, "Month four", entries[3].Content)

	latest := 0
	for i, e := range entries {
		if e.IsLatest {
			latest++
			assert.Equal(t, len(entries)-1, i)
		}
	}
	assert.Equal(t, 1, latest, "exactly one latest marker")
}

func TestAssembleUpdateRatingPassedThrough(t *testing.T) {
	review := mkReview(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	withRating := mkUpdate(review, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "Upgraded opinion")
	withRating.Rating = floatPtr(5)
	without := mkUpdate(review, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "No new rating")

	entries := Assemble(review, []store.ReviewUpdate{without, withRating})

	require.Len(t, entries, 3)
	require.NotNil(t, entries[1].Rating)
	assert.Equal(t, 5.0, *entries[1].Rating)
	assert.Nil(t, entries[2].Rating)
	assert.True(t, entries[2].IsLatest)
}

func TestSummaryGate(t *testing.T) {
	tests := []struct {
		name          string
		summary       *string
		timelineCount int
		state         SummaryState
		show          bool
	}{
		{"no timeline no summary", nil, 0, SummaryHidden, false},
		{"no timeline with summary", strPtr("Great trajectory"), 0, SummaryHidden, false},
		{"timeline without summary", nil, 2, SummaryPending, false},
		{"timeline with empty summary", strPtr(""), 2, SummaryPending, false},
		{"timeline with blank summary", strPtr("   "), 1, SummaryPending, false},
		{"timeline with summary", strPtr("Improved steadily"), 1, SummaryReady, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			review := mkReview(time.Now())
			review.AISummary = tc.summary
			review.TimelineCount = tc.timelineCount

			assert.Equal(t, tc.state, StateOf(review))
			assert.Equal(t, tc.show, ShouldShowSummary(review))
		})
	}
}
