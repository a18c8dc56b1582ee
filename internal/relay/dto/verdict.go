package dto

import "encoding/json"

// Verdict is the structured probability/identification object recovered
// from the model's answer. Probabilities are expected in 0-100 but are not
// range-enforced; nil means the field was absent or unparseable.
type Verdict struct {
	ProbUp     *float64
	ProbDown   *float64
	ProbStable *float64
	Company    string
	TASESymbol string
	USSymbol   string
}

// verdictJSON is the wire shape of the verdict block in the model answer.
type verdictJSON struct {
	ProbUp     *float64 `json:"prob_up"`
	ProbDown   *float64 `json:"prob_down"`
	ProbStable *float64 `json:"prob_stable"`
	Company    string   `json:"company"`
	TASESymbol string   `json:"tase_symbol"`
	USSymbol   string   `json:"us_symbol"`
}

// UnmarshalJSON maps the wire field names onto the Verdict.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var w verdictJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v.ProbUp = w.ProbUp
	v.ProbDown = w.ProbDown
	v.ProbStable = w.ProbStable
	v.Company = w.Company
	v.TASESymbol = w.TASESymbol
	v.USSymbol = w.USSymbol
	return nil
}

// HasProbabilities reports whether all three probability fields are present.
func (v *Verdict) HasProbabilities() bool {
	return v != nil && v.ProbUp != nil && v.ProbDown != nil && v.ProbStable != nil
}

// Thresholds are the externally configured decision bounds, read fresh on
// every evaluation. A nil field fails the decision closed.
type Thresholds struct {
	Min1 *float64 `json:"min1" mapstructure:"min1"`
	Max1 *float64 `json:"max1" mapstructure:"max1"`
	Min2 *float64 `json:"min2" mapstructure:"min2"`
	Max2 *float64 `json:"max2" mapstructure:"max2"`
}

// Complete reports whether all four bounds are present.
func (t *Thresholds) Complete() bool {
	return t != nil && t.Min1 != nil && t.Max1 != nil && t.Min2 != nil && t.Max2 != nil
}

// OrderPlan holds the trade levels derived from a single reference price.
type OrderPlan struct {
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}
