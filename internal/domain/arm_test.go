package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterSet_Key(t *testing.T) {
	cases := []struct {
		p    ParameterSet
		want string
	}{
		{ParameterSet{FastWindow: 5, SlowWindow: 15, VolTarget: 0.4}, "5_15_0.4"},
		{ParameterSet{FastWindow: 20, SlowWindow: 60, VolTarget: 0.15}, "20_60_0.15"},
		{ParameterSet{FastWindow: 3, SlowWindow: 30, VolTarget: 1}, "3_30_1.0"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.p.Key())
	}
}

func TestParameterSet_KeyIgnoresExitFields(t *testing.T) {
	a := ParameterSet{FastWindow: 5, SlowWindow: 15, VolTarget: 0.4, StopLossPct: 0.01}
	b := ParameterSet{FastWindow: 5, SlowWindow: 15, VolTarget: 0.4, StopLossPct: 0.03, TakeProfitPct: 0.1}
	assert.Equal(t, a.Key(), b.Key())
}

func TestParseArmKey_RoundTrip(t *testing.T) {
	p, err := ParseArmKey("10_30_0.3")
	require.NoError(t, err)
	assert.Equal(t, 10, p.FastWindow)
	assert.Equal(t, 30, p.SlowWindow)
	assert.Equal(t, 0.3, p.VolTarget)
	assert.Equal(t, DefaultStopLossPct, p.StopLossPct)
	assert.Equal(t, "10_30_0.3", p.Key())
}

func TestParseArmKey_Invalid(t *testing.T) {
	for _, key := range []string{"", "5_15", "a_15_0.1", "5_b_0.1", "5_15_x", "15_5_0.1", "5_15_0.1_0.02"} {
		_, err := ParseArmKey(key)
		require.Error(t, err, key)
		assert.True(t, errors.Is(err, ErrOptimizerInconsistency), key)
	}
}

func TestParameterSet_Validate(t *testing.T) {
	assert.NoError(t, ParameterSet{FastWindow: 5, SlowWindow: 15, VolTarget: 0.2}.Validate())
	assert.Error(t, ParameterSet{FastWindow: 15, SlowWindow: 15, VolTarget: 0.2}.Validate())
	assert.Error(t, ParameterSet{FastWindow: 0, SlowWindow: 15, VolTarget: 0.2}.Validate())
	assert.Error(t, ParameterSet{FastWindow: 5, SlowWindow: 15}.Validate())
}

func TestArmStatistics_AvgReward(t *testing.T) {
	var s ArmStatistics
	assert.Equal(t, 0.0, s.AvgReward())

	now := time.Now()
	for _, r := range []float64{0.01, -0.02, 0.04} {
		s = s.Record(r, now)
	}
	assert.Equal(t, 3, s.Trials)
	assert.InDelta(t, 0.01, s.AvgReward(), 1e-12)
	assert.Equal(t, now, s.UpdatedAt)
}
