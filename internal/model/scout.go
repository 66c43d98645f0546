package model

import "time"

// ScoutResult is a discovered news item, unique per (politician, url).
type ScoutResult struct {
	Title          string        `json:"title"`
	URL            string        `json:"url"`
	Source         string        `json:"source"`
	PublishedAt    time.Time     `json:"published_at"`
	PoliticianName string        `json:"politician_name"`
	Authority      AuthorityTier `json:"authority"`
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Government and legislative portals
	TierSecondary AuthorityTier = 2 // Major news outlets and agencies
	TierTertiary  AuthorityTier = 3 // Blogs, aggregators, everything else
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
