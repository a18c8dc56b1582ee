// Package parser recovers the structured verdict embedded in the model's
// free-text answer. Extraction strategies are tried in a fixed priority
// order; failing all of them is not an error, only an undecidable signal.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/lenientjson"
)

// fencedBlockRe matches a fenced code block, optionally tagged json, whose
// body starts with an object.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Label prefixes for the identification lines in the narrative, each with
// its orthographic variants (gershayim, straight quote, none).
var (
	companyLabels = []string{"שם החברה:"}
	taseLabels    = []string{"סימבול ת״א:", "סימבול תא:", "סימבול ת\"א:"}
	usLabels      = []string{"סימבול ארה״ב:", "סימבול ארהב:", "סימבול ארה\"ב:"}
)

// ExtractVerdict pulls the verdict object out of the answer. The matched
// span is removed from the returned narrative; when no strategy succeeds
// the original text is returned unmodified with a nil verdict.
func ExtractVerdict(answer string) (string, *dto.Verdict) {
	strategies := []func(string) (string, map[string]interface{}, bool){
		extractFencedBlock,
		extractBalancedObject,
	}

	for _, strategy := range strategies {
		narrative, fields, ok := strategy(answer)
		if !ok {
			continue
		}
		verdict := verdictFromFields(fields)
		scanIdentificationLines(narrative, verdict)
		return narrative, verdict
	}

	return answer, nil
}

// extractFencedBlock parses the first fenced code block holding an object.
func extractFencedBlock(answer string) (string, map[string]interface{}, bool) {
	m := fencedBlockRe.FindStringSubmatchIndex(answer)
	if m == nil {
		return "", nil, false
	}
	body := answer[m[2]:m[3]]

	var fields map[string]interface{}
	if _, err := lenientjson.Unmarshal([]byte(body), &fields); err != nil {
		return "", nil, false
	}
	narrative := strings.TrimSpace(answer[:m[0]] + answer[m[1]:])
	return narrative, fields, true
}

// extractBalancedObject parses the first balanced {...} span in the answer.
func extractBalancedObject(answer string) (string, map[string]interface{}, bool) {
	start, end, ok := lenientjson.FirstBalancedObject(answer)
	if !ok {
		return "", nil, false
	}

	var fields map[string]interface{}
	if _, err := lenientjson.Unmarshal([]byte(answer[start:end]), &fields); err != nil {
		return "", nil, false
	}
	narrative := strings.TrimSpace(answer[:start] + answer[end:])
	return narrative, fields, true
}

func verdictFromFields(fields map[string]interface{}) *dto.Verdict {
	return &dto.Verdict{
		ProbUp:     toFloat(fields["prob_up"]),
		ProbDown:   toFloat(fields["prob_down"]),
		ProbStable: toFloat(fields["prob_stable"]),
		Company:    toString(fields["company"]),
		TASESymbol: toString(fields["tase_symbol"]),
		USSymbol:   toString(fields["us_symbol"]),
	}
}

// scanIdentificationLines fills company/symbol fields the verdict object
// did not carry from labeled lines in the narrative.
func scanIdentificationLines(narrative string, v *dto.Verdict) {
	for _, line := range strings.Split(narrative, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if v.Company == "" {
			if val, ok := matchLabel(s, companyLabels); ok {
				v.Company = val
			}
		}
		if v.TASESymbol == "" {
			if val, ok := matchLabel(s, taseLabels); ok {
				v.TASESymbol = val
			}
		}
		if v.USSymbol == "" {
			if val, ok := matchLabel(s, usLabels); ok {
				v.USSymbol = val
			}
		}
		if v.Company != "" && v.TASESymbol != "" && v.USSymbol != "" {
			return
		}
	}
}

func matchLabel(line string, labels []string) (string, bool) {
	for _, label := range labels {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label)), true
		}
	}
	return "", false
}

func toFloat(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
	}
	return nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
