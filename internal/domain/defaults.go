package domain

import "slices"

// DefaultTopic is offered when no question source provides it.
const DefaultTopic = "Security"

var defaultQuestions = []Question{
	{
		Kind:    KindMCQ,
		Text:    "What does SSL stand for?",
		Options: []string{"Secure Socket Layer", "System Security Layer", "Safe Socket Link", "Secure System Layer"},
		Answer:  "Secure Socket Layer",
	},
	{Kind: KindShort, Text: "What port does SSH use by default?", Answer: "22"},
	{
		Kind:    KindMCQ,
		Text:    "Which encryption is symmetric?",
		Options: []string{"RSA", "AES", "DSA", "ECC"},
		Answer:  "AES",
	},
}

// WithDefaultTopic adds the built-in Security questions to bank unless it
// already carries that topic.
func WithDefaultTopic(bank map[string][]Question) map[string][]Question {
	if bank == nil {
		bank = make(map[string][]Question, 1)
	}
	if len(bank[DefaultTopic]) == 0 {
		bank[DefaultTopic] = slices.Clone(defaultQuestions)
	}
	return bank
}
