package groq

import (
	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(request llms.Request) []message {
	messages := []message{}
	if request.Instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: request.Instructions,
		})
	}
	for _, item := range request.History {
		if item.Text == "" {
			continue
		}
		role := messageRoleUser
		if item.Role == conversations.RoleAgent {
			role = messageRoleAssistant
		}
		messages = append(messages, message{Role: role, Content: item.Text})
	}
	if request.Directive != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: request.Directive,
		})
	}
	return messages
}
