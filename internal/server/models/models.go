// Package models defines the rows of the credential store.
package models

// Account is a registered identity eligible to authenticate. Accounts are
// created by the registration website; the relay only reads, deactivates
// and purges them.
type Account struct {
	ID         int64
	Identifier string
	Active     bool
}

// BruteforceRecord tracks failed authentication attempts per
// (account, source address). Timestamps are unix seconds; BlockedUntil is 0
// while the pair is not blocked.
type BruteforceRecord struct {
	ID           int64
	AccountID    int64
	SourceAddr   string
	FailCount    int
	LastAttempt  int64
	BlockedUntil int64
}

// StatisticRecord is one successful relay, appended when statistics
// retention is enabled.
type StatisticRecord struct {
	AccountID  int64
	SourceAddr string
	Channel    string
	Timestamp  int64
}

// DeferredPayload is a notification body held server-side because it was too
// large to deliver inline. Clients fetch it through the website using the
// opaque id the notification carries instead.
type DeferredPayload struct {
	ID        string
	AccountID int64
	Payload   string
	Timestamp int64
}
