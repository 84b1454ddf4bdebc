package links

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("link not found")
	ErrExpired        = errors.New("link expired")
	ErrInvalidURL     = errors.New("invalid destination url")
	ErrRemarkRequired = errors.New("remark is required")
	ErrOwnerRequired  = errors.New("owner id is required")
	ErrTokenTaken     = errors.New("token taken")
)

// LinkRepository is the durable store for link records. Insert must rely on a
// storage-level uniqueness constraint on the token and return ErrTokenTaken on
// conflict; check-then-insert at the application layer is not acceptable.
type LinkRepository interface {
	Insert(ctx context.Context, link *Link) error
	FindByToken(ctx context.Context, token string) (*Link, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Link, error)
	UpdateDestination(ctx context.Context, token, destination string) (*Link, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
}

// ClickPurger removes a deleted link's visit log and date buckets.
type ClickPurger interface {
	PurgeToken(ctx context.Context, token string) error
}

type TokenGenerator interface {
	Generate(length int) (string, error)
}
