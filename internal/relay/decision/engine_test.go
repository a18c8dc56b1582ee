package decision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-signal-relay/internal/relay/config"
	"golang-signal-relay/internal/relay/dto"
	"golang-signal-relay/pkg/logger"
)

func newTestEngine(t *testing.T, settingsPath string) *Engine {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Decision.SettingsPath = settingsPath
	return New(cfg, log)
}

func fp(f float64) *float64 { return &f }

func verdict(up, down, stable float64) *dto.Verdict {
	return &dto.Verdict{ProbUp: fp(up), ProbDown: fp(down), ProbStable: fp(stable)}
}

func thresholds(min1, max1, min2, max2 float64) *dto.Thresholds {
	return &dto.Thresholds{Min1: fp(min1), Max1: fp(max1), Min2: fp(min2), Max2: fp(max2)}
}

func TestIsActionableBothIntervalsHold(t *testing.T) {
	e := newTestEngine(t, "")

	// up-down=30 in [10,40], up-stable=20 in [5,30]
	assert.True(t, e.IsActionable(verdict(60, 30, 40), thresholds(10, 40, 5, 30)))
}

func TestIsActionableSecondIntervalFails(t *testing.T) {
	e := newTestEngine(t, "")

	// up-stable=50 is outside [5,30]
	assert.False(t, e.IsActionable(verdict(60, 30, 10), thresholds(10, 40, 5, 30)))
}

func TestIsActionableBoundariesInclusive(t *testing.T) {
	e := newTestEngine(t, "")

	assert.True(t, e.IsActionable(verdict(60, 20, 30), thresholds(40, 40, 30, 30)))
}

func TestIsActionableFailsClosedOnMissingProbability(t *testing.T) {
	e := newTestEngine(t, "")

	v := verdict(60, 30, 40)
	v.ProbStable = nil
	assert.False(t, e.IsActionable(v, thresholds(10, 40, 5, 30)))
}

func TestIsActionableFailsClosedOnMissingThreshold(t *testing.T) {
	e := newTestEngine(t, "")

	th := thresholds(10, 40, 5, 30)
	th.Max2 = nil
	assert.False(t, e.IsActionable(verdict(60, 30, 40), th))
}

func TestPlanOrderLevels(t *testing.T) {
	e := newTestEngine(t, "")

	plan := e.PlanOrder(100.0)
	assert.Equal(t, 100.0, plan.EntryPrice)
	assert.Equal(t, 90.0, plan.StopLoss)
	assert.Equal(t, 200.0, plan.TakeProfit)
}

func TestPlanOrderRoundsToFourDecimals(t *testing.T) {
	e := newTestEngine(t, "")

	plan := e.PlanOrder(0.123456)
	assert.Equal(t, 0.1235, plan.EntryPrice)
	assert.Equal(t, 0.1111, plan.StopLoss)
	assert.Equal(t, 0.2469, plan.TakeProfit)
}

func TestLoadThresholdsReadsFreshEachCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min1": 10, "max1": 40, "min2": 5, "max2": 30}`), 0o644))

	e := newTestEngine(t, path)

	th, err := e.LoadThresholds()
	require.NoError(t, err)
	require.True(t, th.Complete())
	assert.Equal(t, 10.0, *th.Min1)

	// operator retunes the file; the next read must reflect it
	require.NoError(t, os.WriteFile(path, []byte(`{"min1": 12, "max1": 40, "min2": 5, "max2": 30}`), 0o644))
	th, err = e.LoadThresholds()
	require.NoError(t, err)
	assert.Equal(t, 12.0, *th.Min1)
}

func TestLoadThresholdsMissingFieldFailsClosed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min1": 10, "max1": 40}`), 0o644))

	e := newTestEngine(t, path)

	th, err := e.LoadThresholds()
	require.NoError(t, err)
	assert.False(t, th.Complete())
	assert.False(t, e.IsActionable(verdict(60, 30, 40), th))
}
