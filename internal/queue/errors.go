package queue

import "errors"

var (
	// ErrInsufficientBalance means a debit would overdraw the wallet.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUserNotFound means the wallet row does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQueueEmpty means playNext found no pending item.
	ErrQueueEmpty = errors.New("queue empty")
)
