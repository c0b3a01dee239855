package queue

import "sort"

// The two orderings over a session's pending items. Both are pure and
// recomputed on every read; queues hold a few dozen items at most.
//
// Display order never moves an item as votes change, only a priority tier
// change does, so the list users watch stays visually stable. Playback
// order lets votes break ties inside a tier.

// byPosition sorts for display: base_priority asc, created_at asc.
func byPosition(items []QueueItem) []QueueItem {
	out := make([]QueueItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BasePriority != out[j].BasePriority {
			return out[i].BasePriority < out[j].BasePriority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// byVotes sorts for playback: base_priority asc, vote_score desc,
// created_at asc. Paid tiers always outrank organic votes.
func byVotes(items []QueueItem) []QueueItem {
	out := make([]QueueItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BasePriority != out[j].BasePriority {
			return out[i].BasePriority < out[j].BasePriority
		}
		if out[i].VoteScore != out[j].VoteScore {
			return out[i].VoteScore > out[j].VoteScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
