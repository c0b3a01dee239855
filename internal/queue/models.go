package queue

import (
	"fmt"
	"time"
)

// Venue owns the pricing configuration for its sessions.
type Venue struct {
	ID                  string    `json:"id"`
	HostUserID          string    `json:"hostUserId"`
	Name                string    `json:"name"`
	Location            string    `json:"location,omitempty"`
	Capacity            int       `json:"capacity,omitempty"`
	PricingEnabled      bool      `json:"pricingEnabled"`
	BasePriceCents      int       `json:"basePriceCents"`
	MinPriceCents       int       `json:"minPriceCents"`
	MaxPriceCents       int       `json:"maxPriceCents"`
	PriceMultiplier     float64   `json:"priceMultiplier"`
	PeakHoursStart      int       `json:"peakHoursStart"`
	PeakHoursEnd        int       `json:"peakHoursEnd"`
	PeakHoursMultiplier float64   `json:"peakHoursMultiplier"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Session is one venue's live queue instance.
type Session struct {
	ID                 string     `json:"id"`
	VenueID            string     `json:"venueId"`
	Status             string     `json:"status"` // "active" | "paused" | "ended"
	JoinCode           string     `json:"joinCode"`
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
	CurrentlyPlayingID *string    `json:"currentlyPlayingId,omitempty"`
	PlaybackStartedAt  *time.Time `json:"playbackStartedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// QueueItem is a single song request within a session.
// BasePriority partitions items into purchase tiers: lower plays sooner,
// purchased jumps go negative. Organic requests sit at tier 0.
type QueueItem struct {
	ID                 string     `json:"id"`
	SessionID          string     `json:"sessionId"`
	UserID             *string    `json:"userId,omitempty"`
	Title              string     `json:"title"`
	Artist             string     `json:"artist"`
	ExternalID         string     `json:"externalId,omitempty"`
	CoverURL           string     `json:"coverUrl,omitempty"`
	PreviewURL         string     `json:"previewUrl,omitempty"`
	DurationMs         int        `json:"durationMs,omitempty"`
	BasePriority       int        `json:"basePriority"`
	VoteScore          int        `json:"voteScore"`
	VoteCount          int        `json:"voteCount"`
	Status             string     `json:"status"` // "pending" | "playing" | "played"
	PlayedAt           *time.Time `json:"playedAt,omitempty"`
	IsCurrentlyPlaying bool       `json:"isCurrentlyPlaying"`
	PositionPaidCents  int        `json:"positionPaidCents"`
	RefundAmountCents  int        `json:"refundAmountCents"`
	InsertedAtPosition *int       `json:"insertedAtPosition,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// EffectiveCost is what the item actually cost its buyer after refunds.
func (qi *QueueItem) EffectiveCost() int {
	return qi.PositionPaidCents - qi.RefundAmountCents
}

// User carries only the wallet fields the queue cares about; identity
// lives in the auth package.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"` // "user" | "host" | "admin"
	BalanceCents int       `json:"balanceCents"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BalanceTransaction is an immutable ledger entry. Rows are never edited
// or deleted; folding a user's entries from the initial credit reproduces
// the stored balance.
type BalanceTransaction struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	AmountCents       int       `json:"amountCents"` // signed
	TransactionType   string    `json:"transactionType"` // "debit" | "refund" | "initial"
	Description       string    `json:"description,omitempty"`
	QueueItemID       *string   `json:"queueItemId,omitempty"`
	BalanceAfterCents int       `json:"balanceAfterCents"`
	CreatedAt         time.Time `json:"createdAt"`
}

const (
	sessionActive = "active"
	sessionPaused = "paused"
	sessionEnded  = "ended"

	itemPending = "pending"
	itemPlaying = "playing"

	txTypeRefund  = "refund"
	txTypeInitial = "initial"

	roleAdmin = "admin"
)

// welcomeBonusCents seeds every new wallet.
const welcomeBonusCents = 10000

// formatCents renders cents as a dollar display string, e.g. 150 -> "$1.50".
func formatCents(cents int) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100.0)
}
