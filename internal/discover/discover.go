// Package discover aggregates tech and learning news from a fixed set of RSS
// feeds, merged newest first.
package discover

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// FeedSource is one upstream RSS feed.
type FeedSource struct {
	URL      string
	Source   string
	Category string
}

// DefaultFeeds is the fixed aggregation roster.
var DefaultFeeds = []FeedSource{
	{URL: "https://hnrss.org/frontpage", Source: "Hacker News", Category: "Tech"},
	{URL: "https://www.reddit.com/r/MachineLearning/.rss", Source: "Reddit ML", Category: "AI"},
	{URL: "https://www.reddit.com/r/artificial/.rss", Source: "Reddit AI", Category: "AI"},
	{URL: "https://dev.to/feed", Source: "Dev.to", Category: "Web Dev"},
	{URL: "https://www.reddit.com/r/webdev/.rss", Source: "Reddit WebDev", Category: "Web Dev"},
	{URL: "https://www.reddit.com/r/programming/.rss", Source: "Reddit Programming", Category: "Tech"},
	{URL: "https://news.ycombinator.com/rss", Source: "Hacker News", Category: "Tech"},
}

// Item is one aggregated feed entry.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	PublishedAt string `json:"published_at"`
}

// Result is the aggregated, sorted, limited feed.
type Result struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Category string `json:"category"`
}

// Aggregator fetches and merges the feed roster.
type Aggregator struct {
	feeds  []FeedSource
	parser *gofeed.Parser
	now    func() time.Time
}

func NewAggregator(feeds []FeedSource) *Aggregator {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "mindcoach-discover/1.0"
	return &Aggregator{feeds: feeds, parser: parser, now: time.Now}
}

const defaultLimit = 20

// Fetch pulls every matching feed in parallel, tolerating per-feed failures,
// and returns the newest items first. Category filtering is case-insensitive;
// "all" or empty matches everything.
func (a *Aggregator) Fetch(ctx context.Context, category string, limit int) (Result, error) {
	if category == "" {
		category = "all"
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var sources []FeedSource
	for _, f := range a.feeds {
		if category == "all" || strings.EqualFold(f.Category, category) {
			sources = append(sources, f)
		}
	}

	batches := make([][]Item, len(sources))
	grp, ctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		grp.Go(func() error {
			feed, err := a.parser.ParseURLWithContext(source.URL, ctx)
			if err != nil {
				slog.Warn("feed fetch failed", "source", source.Source, "error", err)
				return nil
			}
			batches[i] = a.feedItems(source, feed)
			return nil
		})
	}
	_ = grp.Wait()

	var items []Item
	for _, batch := range batches {
		items = append(items, batch...)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return parseTime(items[i].PublishedAt).After(parseTime(items[j].PublishedAt))
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []Item{}
	}
	return Result{Items: items, Total: len(items), Category: category}, nil
}

func (a *Aggregator) feedItems(source FeedSource, feed *gofeed.Feed) []Item {
	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		title := entry.Title
		if title == "" {
			title = "Untitled"
		}
		published := entry.Published
		if published == "" && entry.PublishedParsed != nil {
			published = entry.PublishedParsed.Format(time.RFC3339)
		}
		if published == "" {
			published = a.now().Format(time.RFC3339)
		}
		items = append(items, Item{
			ID:          id,
			Title:       title,
			Description: entry.Description,
			URL:         entry.Link,
			Source:      source.Source,
			Category:    source.Category,
			PublishedAt: published,
		})
	}
	return items
}

func parseTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
