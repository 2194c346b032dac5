package app

// ProjectAnalytics summarizes learning activity for one project.
type ProjectAnalytics struct {
	TotalChats          int               `json:"totalChats"`
	TotalMessages       int               `json:"totalMessages"`
	CompletedMilestones int               `json:"completedMilestones"`
	TotalMilestones     int               `json:"totalMilestones"`
	WeakAreas           []string          `json:"weakAreas"`
	Resources           ResourceBreakdown `json:"resources"`
}

// ResourceBreakdown counts attached resources by who added them.
type ResourceBreakdown struct {
	Total int `json:"total"`
	AI    int `json:"ai"`
	User  int `json:"user"`
}

// Analytics computes the analytics summary for projectID. The boolean is
// false when the project does not exist.
func (b *ContextBuilder) Analytics(projectID string) (ProjectAnalytics, bool, error) {
	project, ok, err := b.store.GetProject(projectID)
	if err != nil || !ok {
		return ProjectAnalytics{}, ok, err
	}
	weakAreas, err := b.store.DetectWeakAreas(projectID)
	if err != nil {
		return ProjectAnalytics{}, false, err
	}

	analytics := ProjectAnalytics{
		TotalChats: len(project.Chats),
		WeakAreas:  weakAreas,
	}
	for _, chat := range project.Chats {
		analytics.TotalMessages += len(chat.Messages)
	}
	if project.Roadmap != nil {
		analytics.TotalMilestones = len(project.Roadmap.Milestones)
		for _, m := range project.Roadmap.Milestones {
			if m.Completed {
				analytics.CompletedMilestones++
			}
		}
	}
	analytics.Resources.Total = len(project.Resources)
	for _, r := range project.Resources {
		switch r.AddedBy {
		case "ai":
			analytics.Resources.AI++
		case "user":
			analytics.Resources.User++
		}
	}
	return analytics, true, nil
}
