package roadmap

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"mindcoach/pkg/domain"
)

const resultsPerMilestone = 3

// enrichMilestones attaches up to three searched resources to every
// milestone, in parallel. A milestone whose search fails or comes back empty
// gets curated fallback links instead; enrichment never fails the roadmap.
func (g *Generator) enrichMilestones(ctx context.Context, topic string, milestones []domain.Milestone) {
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(4)
	for i := range milestones {
		grp.Go(func() error {
			m := &milestones[i]
			m.Resources = g.milestoneResources(ctx, topic, m.Title)
			return nil
		})
	}
	_ = grp.Wait()
}

func (g *Generator) milestoneResources(ctx context.Context, topic, milestoneTitle string) []domain.MilestoneResource {
	if g.searcher != nil {
		query := fmt.Sprintf("%s %s tutorial guide", topic, milestoneTitle)
		results, err := g.searcher.SearchAndContents(ctx, query, resultsPerMilestone)
		if err == nil && len(results) > 0 {
			if len(results) > resultsPerMilestone {
				results = results[:resultsPerMilestone]
			}
			resources := make([]domain.MilestoneResource, 0, len(results))
			for _, r := range results {
				title := r.Title
				if title == "" {
					title = "Resource"
				}
				description := r.Text
				if description == "" {
					description = "No description"
				}
				resources = append(resources, domain.MilestoneResource{
					Title:       title,
					URL:         r.URL,
					Description: description,
					Type:        "article",
				})
			}
			return resources
		}
	}
	return fallbackResources(topic, milestoneTitle)
}

// fallbackResources builds search-engine links so every milestone always has
// somewhere to start, even with the search provider down.
func fallbackResources(topic, milestoneTitle string) []domain.MilestoneResource {
	base := topic + " " + milestoneTitle
	return []domain.MilestoneResource{
		{
			Title:       milestoneTitle + " - Official Documentation",
			URL:         "https://www.google.com/search?q=" + url.QueryEscape(base+" official documentation"),
			Description: "Official documentation and guides for " + milestoneTitle,
			Type:        "documentation",
		},
		{
			Title:       milestoneTitle + " - Video Tutorial",
			URL:         "https://www.youtube.com/results?search_query=" + url.QueryEscape(base+" tutorial"),
			Description: "Video tutorials for " + milestoneTitle,
			Type:        "video",
		},
		{
			Title:       milestoneTitle + " - Community Resources",
			URL:         "https://www.google.com/search?q=" + url.QueryEscape(base+" tutorial guide"),
			Description: "Community tutorials and guides for " + milestoneTitle,
			Type:        "article",
		},
	}
}
