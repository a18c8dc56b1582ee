package telegram

import "strings"

// MaxMessageLen is kept slightly under Telegram's 4096-character message cap.
const MaxMessageLen = 4090

// SplitMessage splits text into chunks that fit in a single Telegram
// message, preferring line boundaries. A single oversized line is hard-cut.
func SplitMessage(text string) []string {
	if len(text) <= MaxMessageLen {
		return []string{text}
	}

	var messages []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > MaxMessageLen {
			flush()
			messages = append(messages, line[:MaxMessageLen])
			line = line[MaxMessageLen:]
		}
		if current.Len()+len(line)+1 > MaxMessageLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()

	return messages
}
