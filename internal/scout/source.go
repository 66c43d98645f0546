package scout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/promessa/internal/fetch"
	"github.com/ppiankov/promessa/internal/model"
)

// Source is one independently queried news or search backend.
type Source interface {
	Name() string
	Search(ctx context.Context, subject string) ([]model.ScoutResult, error)
}

// NewSources builds the configured sources. robots may be nil, in which case
// HTML sources skip the robots.txt check.
func NewSources(cfg model.ScoutConfig, client *fetch.Client, robots *fetch.RobotsChecker) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if !strings.Contains(sc.URL, "%s") {
			return nil, fmt.Errorf("scout source %q: url must contain %%s", sc.Name)
		}
		switch strings.ToLower(sc.Kind) {
		case "rss", "atom", "":
			sources = append(sources, NewFeedSource(sc.Name, sc.URL, client, cfg.MaxItemsPerSource))
		case "html":
			var rc *fetch.RobotsChecker
			if cfg.RespectRobots {
				rc = robots
			}
			sources = append(sources, NewHTMLSource(sc.Name, sc.URL, client, rc, cfg.MaxItemsPerSource))
		default:
			return nil, fmt.Errorf("scout source %q: unknown kind %q", sc.Name, sc.Kind)
		}
	}
	return sources, nil
}

func queryURL(template, subject string) string {
	return fmt.Sprintf(template, url.QueryEscape(subject))
}

func limitItems(items []model.ScoutResult, max int) []model.ScoutResult {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
