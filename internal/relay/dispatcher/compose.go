package dispatcher

import (
	"fmt"
	"strings"

	"golang-signal-relay/internal/relay/dto"
)

// Section labels of the outbound message. The answer anchor doubles as the
// marker the callback handler scans for, so the posted message itself is
// the durable record of the verdict fields.
const (
	headerLabel = "כותרת ההודעה:"
	linkLabel   = "קישור שצורף:"
	answerLabel = "תשובה מ-AI:"
	matrixLabel = "מטריצה:"
	inlineLabel = "נתונים מובנים:"
	planLabel   = "תוכנית עסקה:"

	noHeader    = "(ללא כותרת)"
	noLink      = "(אין קישור)"
	fieldAbsent = "לא זוהה"
)

// Field label variants. Writing always uses the first variant; parsing
// accepts all of them.
var (
	companyLabels = []string{"שם החברה:"}
	taseLabels    = []string{"סימבול ת״א:", "סימבול תא:", "סימבול ת\"א:"}
	usLabels      = []string{"סימבול ארה״ב:", "סימבול ארהב:", "סימבול ארה\"ב:"}
)

// Result carries everything the pipeline produced for one signal.
type Result struct {
	Signal    *dto.ExtractedSignal
	Narrative string
	Verdict   *dto.Verdict
	Plan      *dto.OrderPlan
	AIErr     error
}

// Compose builds the outbound message text. Every section states its own
// presence or absence, so the message is self-describing.
func Compose(r *Result) string {
	var b strings.Builder

	b.WriteString(headerLabel + "\n")
	b.WriteString(orDefault(strings.TrimSpace(r.Signal.QuestionText), noHeader))
	b.WriteString("\n\n" + linkLabel + "\n")
	b.WriteString(orDefault(strings.TrimSpace(r.Signal.PrimaryLink), noLink))

	b.WriteString("\n\n" + answerLabel + "\n")
	switch {
	case r.AIErr != nil:
		b.WriteString(fmt.Sprintf("AI processing failed: %v", r.AIErr))
	default:
		b.WriteString(strings.TrimSpace(r.Narrative))
	}

	if r.Verdict != nil {
		b.WriteString("\n")
		writeVerdict(&b, r.Verdict)
	}

	if r.Plan != nil {
		b.WriteString("\n\n" + planLabel + "\n")
		b.WriteString(formatPlan(r.Plan))
	}

	if r.Signal.InlineBlock != "" {
		b.WriteString("\n\n" + inlineLabel + "\n")
		b.WriteString(r.Signal.InlineBlock)
	}

	if r.Signal.MatrixText != "" {
		b.WriteString("\n\n" + matrixLabel + "\n")
		b.WriteString("```\n" + r.Signal.MatrixText + "\n```")
	}

	return b.String()
}

func writeVerdict(b *strings.Builder, v *dto.Verdict) {
	b.WriteString(companyLabels[0] + " " + orDefault(v.Company, fieldAbsent) + "\n")
	b.WriteString(taseLabels[0] + " " + orDefault(v.TASESymbol, fieldAbsent) + "\n")
	b.WriteString(usLabels[0] + " " + orDefault(v.USSymbol, fieldAbsent))
	if v.HasProbabilities() {
		b.WriteString(fmt.Sprintf("\nעליה: %.0f | ירידה: %.0f | יציבות: %.0f",
			*v.ProbUp, *v.ProbDown, *v.ProbStable))
	}
}

func formatPlan(p *dto.OrderPlan) string {
	return fmt.Sprintf("כניסה: %.4f\nסטופ: %.4f\nיעד: %.4f", p.EntryPrice, p.StopLoss, p.TakeProfit)
}

// ComposeCondensed builds the secondary-destination message: company and
// symbol fields plus the order-plan levels.
func ComposeCondensed(v *dto.Verdict, plan *dto.OrderPlan) string {
	var b strings.Builder
	b.WriteString(companyLabels[0] + " " + orDefault(v.Company, fieldAbsent) + "\n")
	b.WriteString(taseLabels[0] + " " + orDefault(v.TASESymbol, fieldAbsent) + "\n")
	b.WriteString(usLabels[0] + " " + orDefault(v.USSymbol, fieldAbsent))
	if plan != nil {
		b.WriteString("\n" + formatPlan(plan))
	}
	return b.String()
}

// ParseFields recovers the company/symbol lines from a previously posted
// message's text. It returns the empty string when the answer anchor or
// all three fields are missing.
func ParseFields(fullText string) string {
	idx := strings.Index(fullText, answerLabel)
	if idx == -1 {
		return ""
	}
	after := fullText[idx+len(answerLabel):]

	var company, tase, us string
	for _, line := range strings.Split(after, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if company == "" {
			if val, ok := matchLabel(s, companyLabels); ok {
				company = val
			}
		}
		if tase == "" {
			if val, ok := matchLabel(s, taseLabels); ok {
				tase = val
			}
		}
		if us == "" {
			if val, ok := matchLabel(s, usLabels); ok {
				us = val
			}
		}
		if company != "" && tase != "" && us != "" {
			break
		}
	}

	if company == "" && tase == "" && us == "" {
		return ""
	}
	return companyLabels[0] + " " + orDefault(company, fieldAbsent) + "\n" +
		taseLabels[0] + " " + orDefault(tase, fieldAbsent) + "\n" +
		usLabels[0] + " " + orDefault(us, fieldAbsent)
}

func matchLabel(line string, labels []string) (string, bool) {
	for _, label := range labels {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label)), true
		}
	}
	return "", false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
