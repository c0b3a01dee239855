package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func pendingItem(id string, priority, votes int, createdAt time.Time) QueueItem {
	return QueueItem{
		ID:           id,
		SessionID:    "sess1",
		Title:        "Track " + id,
		Artist:       "Artist",
		BasePriority: priority,
		VoteScore:    votes,
		Status:       itemPending,
		CreatedAt:    createdAt,
	}
}

func ids(items []QueueItem) []string {
	out := make([]string, len(items))
	for i, qi := range items {
		out[i] = qi.ID
	}
	return out
}

func TestOrdering(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("votes reorder playback but not display", func(t *testing.T) {
		// A arrived first, B has more votes, same tier.
		a := pendingItem("a", 0, 0, base)
		b := pendingItem("b", 0, 5, base.Add(time.Minute))
		items := []QueueItem{a, b}

		assert.Equal(t, []string{"a", "b"}, ids(byPosition(items)))
		assert.Equal(t, []string{"b", "a"}, ids(byVotes(items)))
	})

	t.Run("paid tier beats any vote score", func(t *testing.T) {
		organic := pendingItem("organic", 0, 100, base)
		paid := pendingItem("paid", -3, 0, base.Add(time.Hour))
		items := []QueueItem{organic, paid}

		assert.Equal(t, []string{"paid", "organic"}, ids(byPosition(items)))
		assert.Equal(t, []string{"paid", "organic"}, ids(byVotes(items)))
	})

	t.Run("ties break by arrival", func(t *testing.T) {
		first := pendingItem("first", 0, 3, base)
		second := pendingItem("second", 0, 3, base.Add(time.Second))
		items := []QueueItem{second, first}

		assert.Equal(t, []string{"first", "second"}, ids(byVotes(items)))
		assert.Equal(t, []string{"first", "second"}, ids(byPosition(items)))
	})

	t.Run("deeper jumps play sooner", func(t *testing.T) {
		items := []QueueItem{
			pendingItem("jump1", -1, 0, base),
			pendingItem("jump3", -3, 0, base),
			pendingItem("organic", 0, 9, base),
			pendingItem("jump2", -2, 0, base),
		}
		assert.Equal(t, []string{"jump3", "jump2", "jump1", "organic"}, ids(byVotes(items)))
	})

	t.Run("input slice untouched", func(t *testing.T) {
		a := pendingItem("a", 0, 0, base)
		b := pendingItem("b", 0, 9, base.Add(time.Minute))
		items := []QueueItem{a, b}

		_ = byVotes(items)
		assert.Equal(t, []string{"a", "b"}, ids(items))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, byVotes(nil))
		assert.Empty(t, byPosition([]QueueItem{}))
	})
}
