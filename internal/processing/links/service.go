package links

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Service implements the link store: creation with collision retry, lookups,
// destination updates, deletion with cascade, and read-time expiration.
type Service struct {
	repo        LinkRepository
	purger      ClickPurger
	tokens      TokenGenerator
	tokenLength int
	now         func() time.Time
}

func NewService(repo LinkRepository, purger ClickPurger, tokens TokenGenerator, tokenLength int) *Service {
	if tokenLength <= 0 {
		tokenLength = DefaultTokenLength
	}

	return &Service{
		repo:        repo,
		purger:      purger,
		tokens:      tokens,
		tokenLength: tokenLength,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateLinkInput) (*Link, error) {
	destination, err := normalizeDestination(in.Destination)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Remark) == "" {
		return nil, ErrRemarkRequired
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}

	now := s.now().UTC()

	var expiresAt *time.Time
	if in.ExpirationDays != nil && *in.ExpirationDays > 0 {
		t := now.Add(time.Duration(*in.ExpirationDays) * 24 * time.Hour)
		expiresAt = &t
	}

	link := &Link{
		Destination: destination,
		OwnerID:     strings.TrimSpace(in.OwnerID),
		Remark:      strings.TrimSpace(in.Remark),
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		Creation:    in.Creation,
	}

	const maxAttempts = 10
	for range maxAttempts {
		token, err := s.tokens.Generate(s.tokenLength)
		if err != nil {
			return nil, err
		}
		link.Token = token

		if err := s.repo.Insert(ctx, link); err != nil {
			if err == ErrTokenTaken {
				continue
			}
			return nil, err
		}

		return link, nil
	}

	return nil, ErrTokenTaken
}

func (s *Service) GetByToken(ctx context.Context, token string) (*Link, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	return s.repo.FindByToken(ctx, token)
}

// ListByOwner returns all links for an owner in no particular order.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Link, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.FindByOwner(ctx, ownerID)
}

// Resolve returns the link for a token if it exists and is not expired.
// Ownership is not checked here; resolution is anonymous by design.
func (s *Service) Resolve(ctx context.Context, token string) (*Link, error) {
	link, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.Expired(s.now()) {
		return nil, ErrExpired
	}
	return link, nil
}

// UpdateDestination replaces a link's destination URL. The surrounding auth
// layer is expected to have verified ownership already.
func (s *Service) UpdateDestination(ctx context.Context, token, newDestination string) (*Link, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}

	destination, err := normalizeDestination(newDestination)
	if err != nil {
		return nil, err
	}

	return s.repo.UpdateDestination(ctx, token, destination)
}

// Delete removes the link record together with its visit log and date
// buckets.
func (s *Service) Delete(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNotFound
	}

	deleted, err := s.repo.DeleteByToken(ctx, token)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	if s.purger != nil {
		if err := s.purger.PurgeToken(ctx, token); err != nil {
			return err
		}
	}

	return nil
}

// normalizeDestination validates that raw is a plausible URL and prefixes
// "http://" when the scheme is missing, so "example.com/page" becomes
// "http://example.com/page".
func normalizeDestination(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	host := u.Hostname()
	if host == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(host, ".") && host != "localhost" {
		return "", ErrInvalidURL
	}

	return u.String(), nil
}
