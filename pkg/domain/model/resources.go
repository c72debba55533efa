package model

import (
	"fmt"
	"strings"
)

// Hotline is one crisis support contact shown to users in crisis.
type Hotline struct {
	Name    string `toml:"name"`
	Contact string `toml:"contact"`
}

// ChatResources holds the fixed texts used by the chat pipeline: system
// prompts, crisis resources, and the deterministic canned content served
// when the model service is unavailable. Defaults are built in; deployments
// can override them with a TOML file.
type ChatResources struct {
	SystemPrompt       string    `toml:"system_prompt"`
	ApologyReply       string    `toml:"apology_reply"`
	FallbackReply      string    `toml:"fallback_reply"`
	CrisisNotice       string    `toml:"crisis_notice"`
	CrisisMessage      string    `toml:"crisis_message"`
	Hotlines           []Hotline `toml:"hotline"`
	FollowUpDefaults   []string  `toml:"follow_up_defaults"`
	SuggestionStarters []string  `toml:"suggestion_starters"`
}

// DefaultChatResources returns the built-in resource set.
func DefaultChatResources() *ChatResources {
	return &ChatResources{
		SystemPrompt: "You are Oppuna, a compassionate mental health assistant. " +
			"Provide supportive, empathetic responses. Never encourage harmful behavior.",
		ApologyReply: "I'm sorry, I'm having trouble processing your request right now. " +
			"Please try again in a moment.",
		FallbackReply: "I'm here with you. I'm currently unable to reach my language model " +
			"service, but I'm still listening. Please tell me more about how you're feeling.",
		CrisisNotice: "I notice you may be going through a difficult time. " +
			"Here are some resources that might help:",
		CrisisMessage: "If you're in immediate danger, please call emergency services " +
			"(911 in the US) right away.",
		Hotlines: []Hotline{
			{Name: "National Suicide Prevention Lifeline", Contact: "1-800-273-8255"},
			{Name: "Crisis Text Line", Contact: "Text HOME to 741741"},
			{Name: "International", Contact: "https://findahelpline.com/"},
		},
		FollowUpDefaults: []string{
			"Can you tell me more about that?",
			"How can I implement these suggestions in my daily life?",
			"What if that doesn't work for me?",
		},
		SuggestionStarters: []string{
			"How are you feeling today?",
			"Can you tell me about your day?",
			"What's on your mind?",
		},
	}
}

// CrisisResourceText builds the fixed resource block appended to a reply
// when the crisis flag is set.
func (r *ChatResources) CrisisResourceText() string {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(r.CrisisNotice)
	for _, h := range r.Hotlines {
		sb.WriteString(fmt.Sprintf("\n• %s: %s", h.Name, h.Contact))
	}
	if r.CrisisMessage != "" {
		sb.WriteString("\n")
		sb.WriteString(r.CrisisMessage)
	}
	return sb.String()
}
