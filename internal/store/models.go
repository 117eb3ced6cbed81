// ABOUTME: Domain models persisted by the store
// ABOUTME: User accounts and chat messages, independent of row shape

package store

import "time"

// User represents an account. ID is assigned by the store on insert.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// ChatMessage represents one message in a chat session. ID is assigned by the
// store; SessionID groups messages and is supplied by the caller.
type ChatMessage struct {
	ID        int64
	UserID    int64
	SessionID string
	Role      string // "user", "model", "system"
	Text      string
	CreatedAt time.Time
}

// sqliteTimeLayout is the format CURRENT_TIMESTAMP produces.
const sqliteTimeLayout = "2006-01-02 15:04:05"
