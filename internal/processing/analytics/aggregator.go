package analytics

import (
	"context"
	"sort"

	"github.com/linkpulse/linkpulse/internal/processing/links"
)

// Aggregator reads stored buckets and visits and produces owner-facing
// rollups. Pure reads; deterministic given stored state.
type Aggregator struct {
	links  links.LinkRepository
	clicks ClickRepository
}

func NewAggregator(linkRepo links.LinkRepository, clickRepo ClickRepository) *Aggregator {
	return &Aggregator{links: linkRepo, clicks: clickRepo}
}

// ClickSummary combines every date bucket across the owner's links into one
// per-date series plus an overall device breakdown. Owners with no links or
// no clicks get a zero summary, not an error.
func (a *Aggregator) ClickSummary(ctx context.Context, ownerID string) (*ClickSummary, error) {
	tokens, err := a.ownerTokens(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := &ClickSummary{DateWise: []DateClicks{}}
	if len(tokens) == 0 {
		return summary, nil
	}

	buckets, err := a.clicks.BucketsByTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DateClicks, len(buckets))
	for _, b := range buckets {
		day, ok := byDate[b.Date]
		if !ok {
			day = &DateClicks{Date: b.Date}
			byDate[b.Date] = day
		}
		day.Total += b.Total
		day.Devices.Merge(b.Devices)

		summary.TotalClicks += b.Total
		summary.Devices.Merge(b.Devices)
	}

	for _, day := range byDate {
		summary.DateWise = append(summary.DateWise, *day)
	}
	sort.Slice(summary.DateWise, func(i, j int) bool {
		return summary.DateWise[i].Date < summary.DateWise[j].Date
	})

	return summary, nil
}

// VisitLog flattens every visit across the owner's links, unsorted. Empty
// slice when the owner has no links or no visits.
func (a *Aggregator) VisitLog(ctx context.Context, ownerID string) ([]Visit, error) {
	tokens, err := a.ownerTokens(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []Visit{}, nil
	}

	visits, err := a.clicks.VisitsByTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if visits == nil {
		visits = []Visit{}
	}
	return visits, nil
}

// TotalClicksByToken sums each token's date buckets. The buckets are the
// source of truth for totals; visits are only the audit log.
func (a *Aggregator) TotalClicksByToken(ctx context.Context, tokens []string) (map[string]int64, error) {
	if len(tokens) == 0 {
		return map[string]int64{}, nil
	}
	return a.clicks.TotalsByTokens(ctx, tokens)
}

func (a *Aggregator) ownerTokens(ctx context.Context, ownerID string) ([]string, error) {
	owned, err := a.links.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(owned))
	for _, link := range owned {
		tokens = append(tokens, link.Token)
	}
	return tokens, nil
}
