package app

import (
	"fmt"
	"strings"

	"mindcoach/pkg/domain"
)

// PromptMode selects which coaching prompt shape to render.
type PromptMode string

const (
	PromptGeneral PromptMode = "general"
	PromptProject PromptMode = "project"
)

const generalCoachPrompt = `You are MindCoach - a calm, intelligent AI learning coach.

YOUR PERSONALITY:
- Clear, concise, no lecture voice
- Talk like a mentor, not a motivational poster
- No long lessons; only tight explanations
- Ask questions instead of dumping information
- Give just enough clarity for the user to think
- Encourage action, not consumption
- Never pretend to know everything; stay grounded
- Speak like a human expert, not a bot

YOUR BEHAVIOR:
1. Diagnose first: "Tell me what you understand so far."
2. Explain minimally: 1-3 sentences + example
3. Give tiny actions: micro-steps
4. Correct and guide
5. Use analogies and real-world examples
6. Check understanding: "Can you explain that in your own words?"
7. Never feel templated - respond naturally

WHEN USER EXPRESSES A LEARNING GOAL:
- Detect the intent
- Offer to create a project: "Want to turn this into a structured learning journey?"
- Don't force it; just suggest

`

// GenerateSystemPrompt renders the coaching system prompt for the given
// context. Output is deterministic: blocks appear in a fixed order and only
// when their context fields are populated.
func GenerateSystemPrompt(ctx domain.ConversationContext, mode PromptMode) string {
	if mode == PromptGeneral {
		return generateGeneralPrompt(ctx)
	}
	return generateProjectPrompt(ctx)
}

func generateGeneralPrompt(ctx domain.ConversationContext) string {
	var b strings.Builder
	b.WriteString(generalCoachPrompt)
	if ctx.LastTopic != "" {
		fmt.Fprintf(&b, "\nLAST DISCUSSION: %s\n", ctx.LastTopic)
	}
	return b.String()
}

func generateProjectPrompt(ctx domain.ConversationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are MindCoach - an AI learning coach helping with the project: %q.

PROJECT DETAILS:
%s
Level: %s
Progress: %d%%

YOUR COACHING STYLE:
1. Teach through conversation, not lectures
2. Ask follow-up questions to diagnose understanding
3. Use analogies and real-world examples
4. Give tiny hands-on actions: "Try writing...", "Explain back to me..."
5. Correct gently: "Almost! But think about..."
6. Celebrate small wins
7. Link to roadmap only when natural
8. Be adaptive - if they're confused, try different explanations
9. Check understanding: "Can you explain that in your own words?"
10. Never feel templated - respond like a real human coach

`, ctx.ProjectTitle, ctx.ProjectDescription, ctx.ProjectLevel, ctx.Progress)

	if ctx.CurrentMilestone != nil {
		fmt.Fprintf(&b, "\nCURRENT MILESTONE: %q\nObjective: %s\nStatus: %s\n",
			ctx.CurrentMilestone.Title, ctx.CurrentMilestone.Objective, ctx.CurrentMilestone.Status)
	}
	if len(ctx.CompletedMilestones) > 0 {
		fmt.Fprintf(&b, "\nCOMPLETED MILESTONES: %s\n", strings.Join(ctx.CompletedMilestones, ", "))
	}
	if ctx.NextMilestone != nil {
		fmt.Fprintf(&b, "\nNEXT UP: %q\n", ctx.NextMilestone.Title)
	}
	if len(ctx.WeakAreas) > 0 {
		fmt.Fprintf(&b, "\nWEAK AREAS (revisit when needed): %s\n", strings.Join(ctx.WeakAreas, ", "))
	}
	if len(ctx.RelevantResources) > 0 {
		b.WriteString("\nRELEVANT RESOURCES AVAILABLE:\n")
		for _, r := range ctx.RelevantResources {
			fmt.Fprintf(&b, "- %s (%s)\n", r.Title, r.Type)
		}
	}
	if ctx.IsResuming && ctx.LastTopic != "" {
		fmt.Fprintf(&b, "\nLAST DISCUSSION: %s\n(The user is continuing from where they left off)\n", ctx.LastTopic)
	}

	b.WriteString("\nRemember: This is CONVERSATIONAL learning. Be natural, encouraging, and adaptive.")
	return b.String()
}
