// Package app assembles conversation context from stored state and renders
// the coaching system prompts sent alongside every model call.
package app

import (
	"strings"

	"mindcoach/pkg/domain"
	"mindcoach/pkg/store"
)

// ContextBuilder gathers project, roadmap, chat, and resource state into a
// single ConversationContext for prompt rendering.
type ContextBuilder struct {
	store store.Store
}

func NewContextBuilder(st store.Store) *ContextBuilder {
	return &ContextBuilder{store: st}
}

// BuildGeneralChatContext assembles context for a chat outside any project.
// Unknown chat ids yield an empty context, not an error.
func (b *ContextBuilder) BuildGeneralChatContext(chatID string) (domain.ConversationContext, error) {
	var ctx domain.ConversationContext
	if chatID == "" {
		return ctx, nil
	}
	chat, ok, err := b.store.GetChat(chatID)
	if err != nil {
		return ctx, err
	}
	if !ok {
		return ctx, nil
	}
	ctx.ChatID = chatID
	ctx.ChatHistory = chat.Messages
	ctx.RecentMessages = lastMessages(chat.Messages, 10)
	ctx.LastTopic = extractLastTopic(chat.Messages)
	return ctx, nil
}

// BuildProjectChatContext assembles the full retrieval context for a project
// chat: project details, roadmap position, chat history, weak areas, and the
// resources tagged to the current milestone.
func (b *ContextBuilder) BuildProjectChatContext(projectID, chatID, milestoneID string) (domain.ConversationContext, error) {
	var ctx domain.ConversationContext
	project, ok, err := b.store.GetProject(projectID)
	if err != nil {
		return ctx, err
	}
	if !ok {
		return ctx, nil
	}
	weakAreas, err := b.store.DetectWeakAreas(projectID)
	if err != nil {
		return ctx, err
	}
	ctx.ProjectID = projectID
	ctx.ProjectTitle = project.Title
	ctx.ProjectDescription = project.Description
	ctx.ProjectLevel = string(project.Level)
	ctx.Progress = project.Progress
	ctx.WeakAreas = weakAreas

	if project.Roadmap != nil {
		milestones := project.Roadmap.Milestones
		for _, m := range milestones {
			if m.Completed {
				ctx.CompletedMilestones = append(ctx.CompletedMilestones, m.Title)
			}
		}
		currentIndex := -1
		if milestoneID != "" {
			for i := range milestones {
				if milestones[i].ID == milestoneID {
					currentIndex = i
					break
				}
			}
		} else {
			for i := range milestones {
				if !milestones[i].Completed {
					currentIndex = i
					break
				}
			}
		}
		if currentIndex >= 0 {
			current := milestones[currentIndex]
			ctx.CurrentMilestone = &current
			if currentIndex+1 < len(milestones) {
				next := milestones[currentIndex+1]
				ctx.NextMilestone = &next
			}
		}
	}

	if chatID != "" {
		chat, ok, err := b.store.GetProjectChat(projectID, chatID)
		if err != nil {
			return ctx, err
		}
		if ok {
			ctx.ChatID = chatID
			ctx.ChatHistory = chat.Messages
			ctx.RecentMessages = lastMessages(chat.Messages, 10)
			ctx.LastTopic = extractLastTopic(chat.Messages)
			ctx.IsResuming = len(chat.Messages) > 0
			if len(chat.WeakAreas) > 0 {
				ctx.WeakAreas = mergeUnique(ctx.WeakAreas, chat.WeakAreas)
			}
		}
	}

	if ctx.CurrentMilestone != nil {
		for _, r := range project.Resources {
			if containsString(r.MilestoneIDs, ctx.CurrentMilestone.ID) {
				ctx.RelevantResources = append(ctx.RelevantResources, r)
			}
		}
	} else {
		n := len(project.Resources)
		if n > 5 {
			n = 5
		}
		ctx.RelevantResources = project.Resources[:n]
	}

	return ctx, nil
}

func lastMessages(messages []domain.Message, n int) []domain.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// extractLastTopic returns the first 100 runes of the latest user message.
func extractLastTopic(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		runes := []rune(messages[i].Content)
		if len(runes) > 100 {
			return string(runes[:100])
		}
		return messages[i].Content
	}
	return ""
}

func mergeUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range base {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

// DeriveChatTitle builds a chat title from the first user message: the whole
// message when it is five words or fewer, otherwise the first five words with
// an ellipsis.
func DeriveChatTitle(firstMessage string) string {
	trimmed := strings.TrimSpace(firstMessage)
	if trimmed == "" {
		return "New Chat"
	}
	words := strings.Split(trimmed, " ")
	if len(words) <= 5 {
		return trimmed
	}
	return strings.Join(words[:5], " ") + "..."
}

// DetectWeakAreasFromChat finds concepts the user repeatedly struggles with.
// When a user message contains a confusion phrase, long words from the
// preceding assistant message are counted; words seen in two or more
// confusion contexts become weak areas, in the order each crossed the
// threshold, capped at five.
func DetectWeakAreasFromChat(messages []domain.Message) []string {
	confusionPhrases := []string{"don't understand", "confused", "what does", "explain again"}

	conceptCounts := make(map[string]int)
	var weakAreas []string
	for i, msg := range messages {
		if msg.Role != domain.RoleUser {
			continue
		}
		content := strings.ToLower(msg.Content)
		confused := false
		for _, phrase := range confusionPhrases {
			if strings.Contains(content, phrase) {
				confused = true
				break
			}
		}
		if !confused || i == 0 {
			continue
		}
		prev := messages[i-1]
		if prev.Role != domain.RoleAssistant {
			continue
		}
		for _, word := range strings.Split(prev.Content, " ") {
			if len(word) > 8 {
				conceptCounts[word]++
				if conceptCounts[word] == 2 {
					weakAreas = append(weakAreas, word)
				}
			}
		}
	}

	if len(weakAreas) > 5 {
		weakAreas = weakAreas[:5]
	}
	return weakAreas
}

// UpdateMilestoneFromChat infers milestone progress from the conversation and
// persists the update. Short conversations are left alone. Weak areas mark
// the milestone struggling; recent assistant praise marks it completed;
// otherwise progress grows with conversation length, capped at 90.
func (b *ContextBuilder) UpdateMilestoneFromChat(projectID, milestoneID string, messages []domain.Message) error {
	if len(messages) < 5 {
		return nil
	}

	weakAreas := DetectWeakAreasFromChat(messages)

	completionSignals := []string{"great job", "you got it", "well done", "ready to move"}
	hasCompletionSignal := false
	for _, m := range lastMessages(messages, 5) {
		if m.Role != domain.RoleAssistant {
			continue
		}
		content := strings.ToLower(m.Content)
		for _, signal := range completionSignals {
			if strings.Contains(content, signal) {
				hasCompletionSignal = true
				break
			}
		}
	}

	var update store.MilestoneUpdate
	switch {
	case len(weakAreas) > 0:
		status := domain.MilestoneStruggling
		update.Status = &status
		update.WeakAreas = weakAreas
	case hasCompletionSignal:
		status := domain.MilestoneCompleted
		completed := true
		progress := 100
		update.Status = &status
		update.Completed = &completed
		update.Progress = &progress
	default:
		status := domain.MilestoneInProgress
		progress := len(messages) * 10
		if progress > 90 {
			progress = 90
		}
		update.Status = &status
		update.Progress = &progress
	}

	return b.store.UpdateMilestone(projectID, milestoneID, update)
}
