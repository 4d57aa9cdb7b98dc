package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"defaults", "", 15, 1, 0},
		{"explicit", "limit=20&page=3", 20, 3, 40},
		{"limit capped", "limit=500", 30, 1, 0},
		{"limit zero falls back", "limit=0", 15, 1, 0},
		{"bad page ignored", "page=-2", 15, 1, 0},
		{"non-numeric ignored", "limit=abc&page=xyz", 15, 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tc.query)
			p := ParsePagination(q)
			assert.Equal(t, tc.wantLimit, p.Limit)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantOffset, p.Offset)
		})
	}
}

func TestComputeMeta(t *testing.T) {
	q, _ := url.ParseQuery("limit=10&page=2")
	p := ParsePagination(q)
	p.ComputeMeta(35)

	assert.Equal(t, 35, p.Total)
	assert.Equal(t, 4, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)
}
