package links

import "time"

// Link binds a short token to its destination URL plus owner metadata.
// Token and OwnerID are immutable once the record is persisted.
type Link struct {
	Token       string
	Destination string
	OwnerID     string
	Remark      string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	Creation    CreationContext
}

// CreationContext captures where a link was created from.
type CreationContext struct {
	IP      string
	Device  string
	OS      string
	Browser string
}

// Expired reports whether the link's expiration date is set and has passed.
// Expiration is evaluated at read time; expired links stay in the store.
func (l *Link) Expired(at time.Time) bool {
	return l.ExpiresAt != nil && at.UTC().After(l.ExpiresAt.UTC())
}

type CreateLinkInput struct {
	Destination    string
	OwnerID        string
	Remark         string
	ExpirationDays *int
	Creation       CreationContext
}
