package live

import (
	"strings"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// MaxChatRunes caps a chat line; longer text is truncated.
const MaxChatRunes = 2000

// ChatMessage fans a chat line out to every participant, sender included.
func (c *Coordinator) ChatMessage(fromID, text string) error {
	const op = domain.MsgTypeChatMessage

	p, ok := c.registry.Get(fromID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, fromID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Drop(op, domain.ErrInvalidTransition, "empty message")
	}
	if utf8.RuneCountInString(text) > MaxChatRunes {
		text = string([]rune(text)[:MaxChatRunes])
	}

	if c.report != nil {
		c.report.ChatMessages++
	}
	c.fanout(&domain.ChatBroadcast{
		Type:        domain.MsgTypeChatMessage,
		From:        fromID,
		DisplayName: p.DisplayName(),
		Text:        text,
		SentAt:      millis(c.now()),
	}, "")
	return nil
}
