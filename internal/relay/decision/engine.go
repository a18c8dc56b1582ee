// Package decision judges whether a verdict is actionable against
// operator-tuned thresholds and derives trade levels from a reference
// price. Thresholds are re-read from disk on every evaluation so retuning
// never requires a restart.
package decision

import (
	"fmt"
	"math"

	"github.com/spf13/viper"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/logger"
)

const (
	stopLossRatio   = 0.9
	takeProfitRatio = 2.0
)

// Engine applies the decision rule.
type Engine struct {
	cfg    *config.Config
	logger *logger.Logger
}

// New creates a new Engine.
func New(cfg *config.Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: log}
}

// LoadThresholds reads the settings file fresh. A dedicated viper instance
// avoids caching across evaluations.
func (e *Engine) LoadThresholds() (*dto.Thresholds, error) {
	v := viper.New()
	v.SetConfigFile(e.cfg.Decision.SettingsPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read thresholds from %s: %w", e.cfg.Decision.SettingsPath, err)
	}

	var t dto.Thresholds
	if err := v.Unmarshal(&t); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds: %w", err)
	}
	return &t, nil
}

// IsActionable reports whether both interval conditions hold:
// min1 <= up-down <= max1 and min2 <= up-stable <= max2. Any missing
// probability or threshold fails closed.
func (e *Engine) IsActionable(v *dto.Verdict, t *dto.Thresholds) bool {
	if !v.HasProbabilities() || !t.Complete() {
		return false
	}

	upDown := *v.ProbUp - *v.ProbDown
	upStable := *v.ProbUp - *v.ProbStable

	actionable := *t.Min1 <= upDown && upDown <= *t.Max1 &&
		*t.Min2 <= upStable && upStable <= *t.Max2

	e.logger.Info("evaluated verdict",
		logger.Float64Field("up_down", upDown),
		logger.Float64Field("up_stable", upStable),
		logger.Field("actionable", actionable),
	)
	return actionable
}

// PlanOrder derives trade levels from a reference price. The strategy is a
// fixed one-sided long bias; level ordering is intentionally not validated.
func (e *Engine) PlanOrder(referencePrice float64) *dto.OrderPlan {
	return &dto.OrderPlan{
		EntryPrice: round4(referencePrice),
		StopLoss:   round4(referencePrice * stopLossRatio),
		TakeProfit: round4(referencePrice * takeProfitRatio),
	}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
