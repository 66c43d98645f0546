package scout

import (
	"net/url"
	"strings"

	"github.com/ppiankov/promessa/internal/model"
)

// AuthorityClassifier classifies result hosts into authority tiers
type AuthorityClassifier struct {
	domainMap map[string]model.AuthorityTier
	primary   []string
	secondary []string
}

// NewAuthorityClassifier creates a new authority classifier. A nil config
// uses the default domain tables.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		def := model.DefaultConfig().Authority
		config = &def
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
		primary:   normalizeDomains(config.PrimaryDomains),
		secondary: normalizeDomains(config.SecondaryDomains),
	}
	for host, tier := range config.DomainMap {
		c.domainMap[strings.ToLower(host)] = parseTierString(tier)
	}
	return c
}

// Classify classifies a URL into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierTertiary
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if matchesDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return model.TierSecondary
	}
	return model.TierTertiary
}

// matchesDomain is true for an exact host or any subdomain of a listed domain.
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
