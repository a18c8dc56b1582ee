// Package extractor turns a raw channel post into an ExtractedSignal:
// links, the cleaned narrative, an optional inline structured block, and an
// optional trailing numeric matrix.
package extractor

import (
	"regexp"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/lenientjson"
	"golang-signal-relay/pkg/logger"
	"golang-signal-relay/pkg/utils"
)

// MaxMatrixChars caps the matrix text forwarded for human display.
const MaxMatrixChars = 12000

// matrixRowRe matches one bracketed comma-separated list of numbers.
var matrixRowRe = regexp.MustCompile(
	`^\s*\[\s*-?\d+(?:\.\d+)?(?:[eE][+\-]?\d+)?\s*(?:,\s*-?\d+(?:\.\d+)?(?:[eE][+\-]?\d+)?\s*)+\]\s*$`,
)

// matrixTagRe matches a trailing [MATRIX]...[/MATRIX] block.
var matrixTagRe = regexp.MustCompile(`(?is)\[MATRIX\]([\s\S]+)\[/MATRIX\]\s*$`)

// Extractor derives signals from channel posts.
type Extractor struct {
	logger *logger.Logger
}

// New creates a new Extractor.
func New(log *logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Extract decomposes a post's text and entity spans into a signal. Each
// removal stage is a no-op when nothing of that kind is present.
func (e *Extractor) Extract(text string, entities []tgbotapi.MessageEntity) *dto.ExtractedSignal {
	signal := &dto.ExtractedSignal{}

	urls, displayTexts := collectLinks(text, entities)
	if len(urls) > 0 {
		signal.PrimaryLink = urls[0]
		signal.ExtraLinks = urls[1:]
	}

	question := text
	for _, u := range urls {
		question = strings.ReplaceAll(question, u, "")
	}
	for _, shown := range displayTexts {
		question = strings.ReplaceAll(question, shown, "")
	}
	question = strings.TrimSpace(question)

	question, block, fields := extractInlineBlock(question)
	signal.InlineBlock = block
	signal.InlineFields = fields

	question, matrix := SplitTrailingMatrix(question)
	signal.MatrixText = matrix
	signal.QuestionText = question

	if e.logger != nil {
		e.logger.Debug("extracted signal",
			logger.IntField("extra_links", len(signal.ExtraLinks)),
			logger.IntField("matrix_len", len(signal.MatrixText)),
			logger.IntField("inline_block_len", len(signal.InlineBlock)),
		)
	}
	return signal
}

// collectLinks gathers entity URLs in first-seen order without duplicates,
// plus the display texts of text_link entities for later removal.
func collectLinks(text string, entities []tgbotapi.MessageEntity) (urls, displayTexts []string) {
	u16 := utf16.Encode([]rune(text))

	var collected []string
	for _, ent := range entities {
		switch ent.Type {
		case "url":
			raw := sliceUTF16(u16, ent.Offset, ent.Length)
			cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "\n", "")
			// the transport occasionally drops the scheme's first byte
			if strings.HasPrefix(cleaned, "ttps://") || strings.HasPrefix(cleaned, "ttp://") {
				cleaned = "h" + cleaned
			}
			if cleaned != "" {
				collected = append(collected, cleaned)
			}
		case "text_link":
			if ent.URL != "" {
				cleaned := strings.ReplaceAll(strings.TrimSpace(ent.URL), "\n", "")
				collected = append(collected, cleaned)
			}
			shown := strings.TrimSpace(sliceUTF16(u16, ent.Offset, ent.Length))
			if shown != "" {
				displayTexts = append(displayTexts, shown)
			}
		}
	}

	seen := make(map[string]struct{}, len(collected))
	for _, u := range collected {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, displayTexts
}

// sliceUTF16 slices a UTF-16 code unit range back into a Go string.
// Telegram entity offsets are expressed in UTF-16 code units.
func sliceUTF16(u16 []uint16, offset, length int) string {
	if offset < 0 || length <= 0 || offset >= len(u16) {
		return ""
	}
	end := offset + length
	if end > len(u16) {
		end = len(u16)
	}
	return string(utf16.Decode(u16[offset:end]))
}

// extractInlineBlock finds the first balanced {...} span, parses it with a
// strict-then-lenient retry, and removes it from the text on success.
func extractInlineBlock(text string) (cleaned, block string, fields map[string]interface{}) {
	start, end, ok := lenientjson.FirstBalancedObject(text)
	if !ok {
		return text, "", nil
	}
	span := text[start:end]

	var parsed map[string]interface{}
	if _, err := lenientjson.Unmarshal([]byte(span), &parsed); err != nil {
		return text, "", nil
	}

	cleaned = strings.TrimSpace(text[:start] + text[end:])
	return cleaned, span, parsed
}

// SplitTrailingMatrix isolates a trailing matrix block, trying in order:
// a run of at least two bracket-number rows, a trailing fenced code block,
// then a trailing [MATRIX] tag. The first match wins.
func SplitTrailingMatrix(text string) (body, matrix string) {
	raw := strings.TrimRight(text, " \t\r\n")

	if body, matrix, ok := splitBracketRows(raw); ok {
		return body, utils.Truncate(matrix, MaxMatrixChars)
	}
	if body, matrix, ok := splitTrailingFence(raw); ok {
		return body, utils.Truncate(matrix, MaxMatrixChars)
	}
	if m := matrixTagRe.FindStringSubmatchIndex(raw); m != nil {
		body = strings.TrimRight(raw[:m[0]], " \t\r\n")
		matrix = strings.TrimSpace(raw[m[2]:m[3]])
		return body, utils.Truncate(matrix, MaxMatrixChars)
	}
	return raw, ""
}

// splitBracketRows collects the maximal trailing run of bracket-number rows.
func splitBracketRows(raw string) (body, matrix string, ok bool) {
	lines := strings.Split(raw, "\n")
	i := len(lines) - 1
	for i >= 0 && matrixRowRe.MatchString(lines[i]) {
		i--
	}
	rows := lines[i+1:]
	if len(rows) < 2 {
		return "", "", false
	}
	body = strings.TrimRight(strings.Join(lines[:i+1], "\n"), " \t\r\n")
	matrix = strings.TrimSpace(strings.Join(rows, "\n"))
	return body, matrix, true
}

// splitTrailingFence matches a fenced code block that is the last content
// in the text, with nothing after the closing fence.
func splitTrailingFence(raw string) (body, matrix string, ok bool) {
	const fence = "```"
	closing := strings.LastIndex(raw, fence)
	if closing == -1 {
		return "", "", false
	}
	if strings.TrimSpace(raw[closing+len(fence):]) != "" {
		return "", "", false
	}
	opening := strings.LastIndex(raw[:closing], fence)
	if opening == -1 {
		return "", "", false
	}
	code := strings.TrimSpace(raw[opening+len(fence) : closing])
	if code == "" {
		return "", "", false
	}
	body = strings.TrimRight(raw[:opening], " \t\r\n")
	return body, code, true
}
