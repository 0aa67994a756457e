package inbox

import "time"

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWebchat  Channel = "webchat"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

var statusRank = map[MessageStatus]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanAdvance reports whether a message may move from one delivery status to
// another. Statuses only move forward; failed is terminal and only reachable
// before delivery.
func CanAdvance(from, to MessageStatus) bool {
	if from == to || from == StatusFailed {
		return false
	}
	if to == StatusFailed {
		return from == StatusPending || from == StatusSent || from == ""
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return true
	}
	return toRank > fromRank
}

type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
	IsUnread  bool      `json:"isUnread"`
}

type Attachment struct {
	Type         string `json:"type"`
	URL          string `json:"url"`
	MimeType     string `json:"mimeType,omitempty"`
	Filename     string `json:"filename,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type TemplateRef struct {
	Name       string   `json:"name"`
	Language   string   `json:"language"`
	Parameters []string `json:"parameters,omitempty"`
}

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Content        string        `json:"content"`
	Timestamp      time.Time     `json:"timestamp"`
	SenderID       string        `json:"senderId"`
	Channel        Channel       `json:"channel"`
	Status         MessageStatus `json:"status"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	Template       *TemplateRef  `json:"template,omitempty"`
}

type Conversation struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"accountId,omitempty"`
	Channel     Channel     `json:"channel"`
	Contact     Contact     `json:"contact"`
	UnreadCount int         `json:"unreadCount"`
	IsArchived  bool        `json:"isArchived"`
	IsBlocked   bool        `json:"isBlocked"`
	LastMessage LastMessage `json:"lastMessage"`
	Messages    []Message   `json:"messages,omitempty"`
}

// MarkRead zeroes the unread counter and flag together.
func (c *Conversation) MarkRead() {
	c.UnreadCount = 0
	c.LastMessage.IsUnread = false
}

// Append adds m to the message sequence unless a message with the same id is
// already there, and refreshes the last-message summary. Inbound messages
// bump the unread counter; outbound ones mean the agent has replied.
func (c *Conversation) Append(m Message, inbound bool) bool {
	for _, existing := range c.Messages {
		if m.ID != "" && existing.ID == m.ID {
			return false
		}
	}
	c.Messages = append(c.Messages, m)
	channel := m.Channel
	if channel == "" {
		channel = c.Channel
	}
	c.LastMessage = LastMessage{
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Channel:   channel,
		IsUnread:  inbound,
	}
	if inbound {
		c.UnreadCount++
	} else {
		c.UnreadCount = 0
	}
	return true
}

// SetStatus advances one message's delivery status. Backward moves are
// ignored.
func (c *Conversation) SetStatus(messageID string, status MessageStatus) bool {
	for i := range c.Messages {
		if c.Messages[i].ID != messageID {
			continue
		}
		if !CanAdvance(c.Messages[i].Status, status) {
			return false
		}
		c.Messages[i].Status = status
		return true
	}
	return false
}

func (c Conversation) clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}
