package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Post is a single message inside a discussion thread.
type Post struct {
	PostID              *int   `json:"post_id,omitempty"`
	AuthorRole          string `json:"author_role"`
	Timestamp           string `json:"timestamp"`
	Sentiment           string `json:"sentiment"`
	Content             string `json:"content"`
	RepliesToPostNumber *int   `json:"replies_to_post_number,omitempty"`
	HasVaccineKeyword   bool   `json:"has_vaccine_keyword"`
}

// ThreadStore maps a stringified integer thread id to its posts in order.
type ThreadStore map[string][]Post

// IDs returns the thread ids sorted numerically.
func (s ThreadStore) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}

// PostCount is the total number of posts across all threads.
func (s ThreadStore) PostCount() int {
	n := 0
	for _, posts := range s {
		n += len(posts)
	}
	return n
}

// AppState is published once by a successful unlock and never mutated afterwards.
// View handlers only read from it.
type AppState struct {
	Threads     ThreadStore
	Annotations []json.RawMessage
	UnlockedAt  time.Time
}

// Thread returns a copy of the posts for id so callers cannot alter the published store.
func (a *AppState) Thread(id string) ([]Post, error) {
	posts, ok := a.Threads[id]
	if !ok {
		return nil, ErrThreadNotFound
	}
	out := make([]Post, len(posts))
	copy(out, posts)
	return out, nil
}

// StateProvider exposes the published application state to the view layer.
// State returns nil until an unlock has succeeded.
type StateProvider interface {
	State() *AppState
}
