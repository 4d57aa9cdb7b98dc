// Package timeline projects a review and its follow-up updates into the
// ordered sequence shown on review pages.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"groundz/internal/store"

	"github.com/dustin/go-humanize"
)

// Entry is a derived view row, recomputed on every request and never stored.
type Entry struct {
	Period   string    `json:"period"`
	Content  string    `json:"content"`
	Rating   *float64  `json:"rating,omitempty"`
	IsLatest bool      `json:"is_latest"`
	Date     time.Time `json:"date"`
}

// Assemble merges the review's initial impression with its updates into one
// ascending sequence. Updates arrive newest-first from storage; order in is
// irrelevant. Exactly one entry carries IsLatest once at least one update
// exists, and it is never the initial entry.
func Assemble(review *store.Review, updates []store.ReviewUpdate) []Entry {
	type indexed struct {
		entry    Entry
		isUpdate bool
	}

	items := make([]indexed, 0, len(updates)+1)

	content := ""
	if review.Description != nil {
		content = *review.Description
	}
	if content == "" {
		content = fmt.Sprintf("Started using %s. Initial impressions.", review.Title)
	}
	initialRating := review.Rating
	items = append(items, indexed{entry: Entry{
		Period:  humanize.Time(review.CreatedAt),
		Content: content,
		Rating:  &initialRating,
		Date:    review.CreatedAt,
	}})

	for _, update := range updates {
		items = append(items, indexed{
			entry: Entry{
				Period:  humanize.Time(update.CreatedAt),
				Content: update.Comment,
				Rating:  update.Rating,
				Date:    update.CreatedAt,
			},
			isUpdate: true,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].entry.Date.Before(items[j].entry.Date)
	})

	// the last update entry in ascending order is the chronologically
	// latest one
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].isUpdate {
			items[i].entry.IsLatest = true
			break
		}
	}

	out := make([]Entry, len(items))
	for i, item := range items {
		out[i] = item.entry
	}
	return out
}
