// Package upstream is the boundary to the Google Admin SDK Directory
// API. The rest of the system consumes the Client interface and the
// typed projections below; nothing outside this package touches the SDK
// types directly.
package upstream

import (
	"context"
	"errors"
)

// ErrNotFound reports that the provider has no such user or group. It is
// a normal negative result, not a fault: callers map it to an empty
// search result or a false existence check.
var ErrNotFound = errors.New("upstream: not found")

// Phone is a typed phone record. The provider distinguishes entries by
// their type label; only "mobile" and "work" are mapped into entries.
type Phone struct {
	Type  string
	Value string
}

// User projects the provider's user record.
type User struct {
	ID              string
	PrimaryEmail    string
	FullName        string
	GivenName       string
	FamilyName      string
	Phones          []Phone
	SecondaryEmails []string
}

// Group projects the provider's group record.
type Group struct {
	ID          string
	Email       string
	Description string
}

// Member projects one group membership record. Email may be empty for
// membership rows that identify no mailbox (e.g. whole-domain members).
type Member struct {
	Email string
}

// Client is the read-only surface of the corporate directory plus the
// mail-login probe used by bind. Implementations handle pagination and
// rate limiting internally; every call blocks until the provider
// responds or the per-call timeout fires.
type Client interface {
	ListUsers(ctx context.Context) ([]*User, error)
	GetUser(ctx context.Context, login string) (*User, error)
	ListUserAliases(ctx context.Context, login string) ([]string, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	GetGroup(ctx context.Context, key string) (*Group, error)
	ListGroupMembers(ctx context.Context, groupKey string) ([]*Member, error)

	// MailLogin validates credentials with a secure mail-protocol
	// handshake. A nil error means the provider accepted the login.
	MailLogin(ctx context.Context, fullLogin, secret string) error
}
