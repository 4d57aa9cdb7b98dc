// Package feed turns a flat review list into the prioritized display order
// used by entity and profile pages: reviews from the viewer's circle and
// reviews with active timelines surface first.
package feed

import (
	"sort"
	"strings"

	"groundz/internal/store"

	"github.com/google/uuid"
)

type Sort string

const (
	SortMostRecent   Sort = "most_recent"
	SortHighestRated Sort = "highest_rated"
	SortLowestRated  Sort = "lowest_rated"
)

type RatingMode string

const (
	RatingModeExact RatingMode = "exact"
	RatingModeRange RatingMode = "range"
)

// Filters are AND-combined. RatingThreshold nil means no rating filter.
type Filters struct {
	Search          string
	Verified        bool
	RatingThreshold *float64
	RatingMode      RatingMode
	NetworkOnly     bool
	HasTimeline     bool
	HasMedia        bool
}

// CircleSet is the set of user ids the viewer actively follows.
type CircleSet map[uuid.UUID]struct{}

func NewCircleSet(ids []uuid.UUID) CircleSet {
	set := make(CircleSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (c CircleSet) Contains(id uuid.UUID) bool {
	_, ok := c[id]
	return ok
}

// Partition splits a filtered review set into four disjoint buckets. Every
// review lands in exactly one bucket; bucket slices keep the input order.
type Partition struct {
	Hybrid       []store.Review
	CircleOnly   []store.Review
	TimelineOnly []store.Review
	Regular      []store.Review
}

type Counts struct {
	Hybrid       int `json:"hybrid"`
	CircleOnly   int `json:"circle_only"`
	TimelineOnly int `json:"timeline_only"`
	Regular      int `json:"regular"`
}

func (p Partition) Counts() Counts {
	return Counts{
		Hybrid:       len(p.Hybrid),
		CircleOnly:   len(p.CircleOnly),
		TimelineOnly: len(p.TimelineOnly),
		Regular:      len(p.Regular),
	}
}

// Result is what one classification pass produces: the final display order
// plus the partition that labels/badges are rendered from. The two are
// decoupled on purpose: rating sorts flatten the order but never change
// bucket membership.
type Result struct {
	Ordered   []store.Review
	Partition Partition
}

// Classify runs filter, partition and order in one pass. Pure function of its
// inputs; callers may memoize on (reviews, circle, filters, sort).
func Classify(reviews []store.Review, circle CircleSet, filters Filters, sortBy Sort) Result {
	filtered := Apply(reviews, circle, filters)
	partition := Split(filtered, circle)
	return Result{
		Ordered:   Order(partition, filtered, sortBy),
		Partition: partition,
	}
}

// Apply returns the reviews passing every active filter, preserving input
// order (upstream queries are newest-first).
func Apply(reviews []store.Review, circle CircleSet, f Filters) []store.Review {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]store.Review, 0, len(reviews))
	for _, r := range reviews {
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		if f.Verified && !r.IsVerified {
			continue
		}
		if f.RatingThreshold != nil && !matchesRating(r.Rating, *f.RatingThreshold, f.RatingMode) {
			continue
		}
		if f.NetworkOnly && !circle.Contains(r.UserID) {
			continue
		}
		if f.HasTimeline && !hasActiveTimeline(r) {
			continue
		}
		if f.HasMedia && len(r.Media) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r store.Review, search string) bool {
	if strings.Contains(strings.ToLower(r.Title), search) {
		return true
	}
	return r.Description != nil && strings.Contains(strings.ToLower(*r.Description), search)
}

func matchesRating(rating, threshold float64, mode RatingMode) bool {
	if mode == RatingModeExact {
		return rating == threshold
	}
	return rating >= threshold
}

func hasActiveTimeline(r store.Review) bool {
	return r.HasTimeline && r.TimelineCount > 0
}

// Split partitions the filtered set:
//
//	hybrid       = timeline ∩ circle
//	circleOnly   = circle − timeline
//	timelineOnly = timeline − circle
//	regular      = everything else
func Split(filtered []store.Review, circle CircleSet) Partition {
	var p Partition
	for _, r := range filtered {
		timeline := hasActiveTimeline(r)
		inCircle := circle.Contains(r.UserID)
		switch {
		case timeline && inCircle:
			p.Hybrid = append(p.Hybrid, r)
		case inCircle:
			p.CircleOnly = append(p.CircleOnly, r)
		case timeline:
			p.TimelineOnly = append(p.TimelineOnly, r)
		default:
			p.Regular = append(p.Regular, r)
		}
	}
	return p
}

// Order decides the display sequence. Under most-recent sort the buckets are
// concatenated hybrid, circleOnly, timelineOnly, regular. Rating sorts bypass
// the buckets entirely and stably sort the filtered set by rating; the
// partition still drives labels and counts, only the order changes.
func Order(p Partition, filtered []store.Review, sortBy Sort) []store.Review {
	switch sortBy {
	case SortHighestRated, SortLowestRated:
		out := make([]store.Review, len(filtered))
		copy(out, filtered)
		sort.SliceStable(out, func(i, j int) bool {
			if sortBy == SortHighestRated {
				return out[i].Rating > out[j].Rating
			}
			return out[i].Rating < out[j].Rating
		})
		return out
	default:
		out := make([]store.Review, 0, len(filtered))
		out = append(out, p.Hybrid...)
		out = append(out, p.CircleOnly...)
		out = append(out, p.TimelineOnly...)
		out = append(out, p.Regular...)
		return out
	}
}

// LimitRegular caps the regular bucket for contexts that truncate it (the
// profile review section shows at most a few regular reviews). The other
// three buckets are always shown in full.
func LimitRegular(p Partition, n int) Partition {
	if n >= 0 && len(p.Regular) > n {
		p.Regular = p.Regular[:n]
	}
	return p
}
