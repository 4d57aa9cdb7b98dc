package timeline

import (
	"strings"

	"groundz/internal/store"
)

// SummaryState distinguishes "not yet eligible" (hide the summary block
// entirely) from "eligible but not generated yet" (show a pending
// placeholder).
type SummaryState string

const (
	SummaryHidden  SummaryState = "hidden"
	SummaryPending SummaryState = "pending"
	SummaryReady   SummaryState = "ready"
)

// ShouldShowSummary reports whether the precomputed narrative summary is
// displayable: a non-empty summary and at least one timeline update.
func ShouldShowSummary(review *store.Review) bool {
	return StateOf(review) == SummaryReady
}

func StateOf(review *store.Review) SummaryState {
	if review.TimelineCount < 1 {
		return SummaryHidden
	}
	if review.AISummary == nil || strings.TrimSpace(*review.AISummary) == "" {
		return SummaryPending
	}
	return SummaryReady
}
