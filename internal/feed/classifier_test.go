package feed

import (
	"fmt"
	"testing"
	"time"

	"groundz/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

type reviewOpt func(*store.Review)

func withTimeline(count int) reviewOpt {
	return func(r *store.Review) {
		r.HasTimeline = true
		r.TimelineCount = count
	}
}

func withRating(rating float64) reviewOpt {
	return func(r *store.Review) { r.Rating = rating }
}

func withMedia() reviewOpt {
	return func(r *store.Review) { r.Media = []string{"https://cdn.example/p.jpg"} }
}

func verified() reviewOpt {
	return func(r *store.Review) { r.IsVerified = true }
}

var fixtureSeq int

func mkReview(author uuid.UUID, opts ...reviewOpt) store.Review {
	fixtureSeq++
	r := store.Review{
		ID:        uuid.New(),
		UserID:    author,
		Title:     fmt.Sprintf("Review %d", fixtureSeq),
		Rating:    4,
		Category:  "food",
		Status:    "published",
		CreatedAt: time.Now().Add(-time.Duration(fixtureSeq) * time.Hour),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func TestSplitIsDisjointAndComplete(t *testing.T) {
	circleUser := uuid.New()
	outsider := uuid.New()
	circle := NewCircleSet([]uuid.UUID{circleUser})

	reviews := []store.Review{
		mkReview(circleUser, withTimeline(2)),
		mkReview(circleUser),
		mkReview(outsider, withTimeline(1)),
		mkReview(outsider),
		mkReview(circleUser, withTimeline(0)), // has_timeline without entries is not active
	}

	p := Split(reviews, circle)

	assert.Len(t, p.Hybrid, 1)
	assert.Len(t, p.CircleOnly, 2)
	assert.Len(t, p.TimelineOnly, 1)
	assert.Len(t, p.Regular, 1)

	seen := map[uuid.UUID]int{}
	for _, bucket := range [][]store.Review{p.Hybrid, p.CircleOnly, p.TimelineOnly, p.Regular} {
		for _, r := range bucket {
			seen[r.ID]++
		}
	}
	require.Len(t, seen, len(reviews), "every review lands in a bucket")
	for id, n := range seen {
		assert.Equal(t, 1, n, "review %s appears in exactly one bucket", id)
	}
}

func TestApplyFilters(t *testing.T) {
	circleUser := uuid.New()
	outsider := uuid.New()
	circle := NewCircleSet([]uuid.UUID{circleUser})

	matching := mkReview(circleUser, withRating(5), withTimeline(1), withMedia(), verified())
	matching.Title = "Hidden gem ramen"
	other := mkReview(outsider, withRating(2))
	other.Description = strPtr("Forgettable burger joint")

	reviews := []store.Review{matching, other}

	tests := []struct {
		name    string
		filters Filters
		want    []uuid.UUID
	}{
		{"no filters", Filters{}, []uuid.UUID{matching.ID, other.ID}},
		{"search title", Filters{Search: "RAMEN"}, []uuid.UUID{matching.ID}},
		{"search description", Filters{Search: "burger"}, []uuid.UUID{other.ID}},
		{"verified", Filters{Verified: true}, []uuid.UUID{matching.ID}},
		{"rating exact", Filters{RatingThreshold: floatPtr(2), RatingMode: RatingModeExact}, []uuid.UUID{other.ID}},
		{"rating range", Filters{RatingThreshold: floatPtr(3), RatingMode: RatingModeRange}, []uuid.UUID{matching.ID}},
		{"network only", Filters{NetworkOnly: true}, []uuid.UUID{matching.ID}},
		{"has timeline", Filters{HasTimeline: true}, []uuid.UUID{matching.ID}},
		{"has media", Filters{HasMedia: true}, []uuid.UUID{matching.ID}},
		{"and-combined excludes all", Filters{Verified: true, RatingThreshold: floatPtr(2), RatingMode: RatingModeExact}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Apply(reviews, circle, tc.filters)
			ids := make([]uuid.UUID, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if tc.want == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

// Ten reviews: 3 hybrid, 2 circle-only, 1 timeline-only, 4 regular. Most
// recent sort must play them back bucket by bucket, each bucket in upstream
// (newest-first) order.
func TestOrderMostRecent(t *testing.T) {
	circleA, circleB, outsider := uuid.New(), uuid.New(), uuid.New()
	circle := NewCircleSet([]uuid.UUID{circleA, circleB})

	hybrid := []store.Review{
		mkReview(circleA, withTimeline(1)),
		mkReview(circleB, withTimeline(3)),
		mkReview(circleA, withTimeline(2)),
	}
	circleOnly := []store.Review{mkReview(circleB), mkReview(circleA)}
	timelineOnly := []store.Review{mkReview(outsider, withTimeline(1))}
	regular := []store.Review{
		mkReview(outsider), mkReview(outsider), mkReview(outsider), mkReview(outsider),
	}

	// interleave the way a newest-first query would return them
	reviews := []store.Review{
		regular[0], hybrid[0], circleOnly[0], hybrid[1], timelineOnly[0],
		regular[1], hybrid[2], regular[2], circleOnly[1], regular[3],
	}

	result := Classify(reviews, circle, Filters{}, SortMostRecent)

	require.Len(t, result.Ordered, 10)
	wantOrder := []uuid.UUID{
		hybrid[0].ID, hybrid[1].ID, hybrid[2].ID,
		circleOnly[0].ID, circleOnly[1].ID,
		timelineOnly[0].ID,
		regular[0].ID, regular[1].ID, regular[2].ID, regular[3].ID,
	}
	for i, want := range wantOrder {
		assert.Equal(t, want, result.Ordered[i].ID, "position %d", i)
	}

	// caller-side truncation for the profile section: regular bucket only
	limited := LimitRegular(result.Partition, 3)
	display := Order(limited, nil, SortMostRecent)
	assert.Len(t, display, 9)
	assert.Equal(t, regular[2].ID, display[8].ID)
}

// Switching sort modes must change only the order. Bucket membership and
// counts stay identical: rating sort bypasses bucket ordering, not labeling.
func TestRatingSortDecoupledFromPartition(t *testing.T) {
	circleUser := uuid.New()
	outsider := uuid.New()
	circle := NewCircleSet([]uuid.UUID{circleUser})

	reviews := []store.Review{
		mkReview(circleUser, withRating(2), withTimeline(1)),
		mkReview(outsider, withRating(5)),
		mkReview(circleUser, withRating(4)),
		mkReview(outsider, withRating(3), withTimeline(2)),
	}

	recent := Classify(reviews, circle, Filters{}, SortMostRecent)
	highest := Classify(reviews, circle, Filters{}, SortHighestRated)
	lowest := Classify(reviews, circle, Filters{}, SortLowestRated)

	assert.Equal(t, recent.Partition.Counts(), highest.Partition.Counts())
	assert.Equal(t, recent.Partition.Counts(), lowest.Partition.Counts())

	gotHighest := ratings(highest.Ordered)
	assert.Equal(t, []float64{5, 4, 3, 2}, gotHighest)
	gotLowest := ratings(lowest.Ordered)
	assert.Equal(t, []float64{2, 3, 4, 5}, gotLowest)

	// bucket ordering does not leak into the flat rating sort
	assert.Equal(t, reviews[1].ID, highest.Ordered[0].ID)
}

func TestRatingSortTiesKeepUpstreamOrder(t *testing.T) {
	author := uuid.New()
	first := mkReview(author, withRating(4))
	second := mkReview(author, withRating(4))
	third := mkReview(author, withRating(4))

	result := Classify([]store.Review{first, second, third}, CircleSet{}, Filters{}, SortHighestRated)

	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID},
		[]uuid.UUID{result.Ordered[0].ID, result.Ordered[1].ID, result.Ordered[2].ID})
}

func ratings(reviews []store.Review) []float64 {
	out := make([]float64, len(reviews))
	for i, r := range reviews {
		out[i] = r.Rating
	}
	return out
}
