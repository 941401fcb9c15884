package events

import "github.com/koscakluka/ema-tota/core/conversations"

// KindConversationItemAdded identifies an item committed to the conversation log.
const KindConversationItemAdded Kind = "conversation.item_added"

// ConversationItemAdded carries the committed conversation item.
type ConversationItemAdded struct {
	Base
	Item conversations.Item
}

// NewConversationItemAdded creates a conversation item added event.
func NewConversationItemAdded(item conversations.Item) ConversationItemAdded {
	return ConversationItemAdded{Base: NewBase(KindConversationItemAdded), Item: item}
}
