package dto

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChannelPost is one inbound broadcast message as received from Telegram.
type ChannelPost struct {
	ChatID     int64
	MessageID  int
	Text       string
	Entities   []tgbotapi.MessageEntity
	ReceivedAt time.Time
}

// ExtractedSignal is the deterministic decomposition of a channel post.
type ExtractedSignal struct {
	QuestionText string
	PrimaryLink  string
	ExtraLinks   []string
	MatrixText   string
	// InlineBlock is the raw {...} span found in the post; InlineFields is
	// its parsed form. Both are empty when no block was found.
	InlineBlock  string
	InlineFields map[string]interface{}
}

// ReferencePrice returns the price carried by the inline block, if any.
func (s *ExtractedSignal) ReferencePrice() (float64, bool) {
	if s.InlineFields == nil {
		return 0, false
	}
	for _, key := range []string{"price", "entry_price"} {
		if v, ok := s.InlineFields[key]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// SourceKind classifies a resolved source.
type SourceKind string

const (
	SourceKindDocument SourceKind = "document"
	SourceKindMarkup   SourceKind = "markup"
	SourceKindText     SourceKind = "text"
)

// NormalizedSource is one fetched and converted source ready for the AI
// gateway: either a local document file to upload or capped inline text.
type NormalizedSource struct {
	Origin     string
	Kind       SourceKind
	FilePath   string
	MIMEType   string
	InlineText string
}

// IsDocument reports whether the source carries an uploadable file.
func (s *NormalizedSource) IsDocument() bool {
	return s.FilePath != ""
}
