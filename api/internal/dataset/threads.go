package dataset

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

const defaultSentiment = "neutral"

var threadColumns = []string{
	"thread_id", "post_id", "author_role", "timestamp",
	"content", "sentiment", "has_vaccine_keyword", "replies_to_post_number",
}

type threadRow struct {
	threadID int64
	post     domain.Post
}

// ReadThreads groups the thread CSV by thread_id, ordering posts by (thread_id, timestamp).
// Rows without a usable thread_id are dropped; the returned row count lets Validate report them.
func ReadThreads(r io.Reader) (domain.ThreadStore, int, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, 0, err
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range threadColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, col)
		}
	}
	cell := func(row []string, col string) string {
		return strings.TrimSpace(row[idx[col]])
	}

	parsed := make([]threadRow, 0, len(rows))
	for _, row := range rows {
		threadID, ok := parseWhole(cell(row, "thread_id"))
		if !ok {
			continue
		}

		post := domain.Post{
			AuthorRole: cell(row, "author_role"),
			Timestamp:  cell(row, "timestamp"),
			Content:    row[idx["content"]],
			Sentiment:  cell(row, "sentiment"),
		}
		if post.Sentiment == "" {
			post.Sentiment = defaultSentiment
		}
		if n, ok := parseWhole(cell(row, "post_id")); ok {
			id := int(n)
			post.PostID = &id
		}
		if n, ok := parseWhole(cell(row, "replies_to_post_number")); ok {
			reply := int(n)
			post.RepliesToPostNumber = &reply
		}
		post.HasVaccineKeyword = truthy(cell(row, "has_vaccine_keyword"))

		parsed = append(parsed, threadRow{threadID: threadID, post: post})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		if parsed[i].threadID != parsed[j].threadID {
			return parsed[i].threadID < parsed[j].threadID
		}
		return parsed[i].post.Timestamp < parsed[j].post.Timestamp
	})

	store := make(domain.ThreadStore)
	for _, p := range parsed {
		key := strconv.FormatInt(p.threadID, 10)
		store[key] = append(store[key], p.post)
	}
	return store, len(rows), nil
}

// parseWhole reads integers that may have been exported as floats ("12.0").
func parseWhole(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func truthy(s string) bool {
	if b, ok := parseBool(s); ok {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return s != ""
}
