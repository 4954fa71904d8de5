package domain

// MessageStatus tracks delivery of a support message to its counterpart
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageSeen      MessageStatus = "seen"
)

// Rank orders statuses so they only ever move forward
func (s MessageStatus) Rank() int {
	switch s {
	case MessageDelivered:
		return 1
	case MessageSeen:
		return 2
	default:
		return 0
	}
}

// Attachment kinds
const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
)

// Attachment is an inline media payload carried by a message
type Attachment struct {
	Type string `gorm:"size:16" json:"type"` // image or audio
	Data string `json:"data"`                // data URL
}

// SupportMessage Model
type SupportMessage struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	ConversationKey string        `gorm:"index;size:36;not null" json:"conversationKey"` // User id of the customer side
	SenderName      string        `gorm:"size:128" json:"senderName"`
	Text            string        `json:"text"`
	IsFromAdmin     bool          `gorm:"not null" json:"isFromAdmin"`
	Attachment      *Attachment   `gorm:"embedded;embeddedPrefix:attachment_" json:"attachment,omitempty"`
	Status          MessageStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt       int64         `gorm:"index;autoCreateTime:milli" json:"timestamp"`
}
