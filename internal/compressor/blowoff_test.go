package compressor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlowOff(t *testing.T) *BlowOff {
	t.Helper()
	s, err := NewBlowOff(452.3, 3138, 370.9, 2510)
	require.NoError(t, err)
	return s
}

func TestBlowOff_PowerFractionBelowFloor(t *testing.T) {
	s := newTestBlowOff(t)

	op, err := s.CalculateFromPowerFraction(0.82, 0.6798)
	require.NoError(t, err)

	assert.InDelta(t, 370.886, op.Power, 1e-9)
	assert.InDelta(t, 0.82, op.PowerFraction, 1e-12)
	assert.InDelta(t, 376.7876, op.Flow, 1e-6)
	assert.InDelta(t, 0.1201, op.FlowFraction, 1e-4)
	require.NotNil(t, op.Auxiliary)
	assert.InDelta(t, 2133.2124, op.Auxiliary.Flow, 1e-6)
	assert.Equal(t, 0.6798, op.Auxiliary.Fraction)
	assert.Equal(t, RegimeFloorPinned, op.Regime)
}

func TestBlowOff_FlowFractionBelowFloor(t *testing.T) {
	s := newTestBlowOff(t)

	op, err := s.CalculateFromFlowFraction(0.01)
	require.NoError(t, err)

	assert.Equal(t, 370.9, op.Power, "power held at the floor")
	assert.InDelta(t, 0.820031, op.PowerFraction, 1e-6)
	assert.InDelta(t, 31.38, op.Flow, 1e-9)
	assert.InDelta(t, 0.01, op.FlowFraction, 1e-12)
	require.NotNil(t, op.Auxiliary)
	assert.InDelta(t, 2478.62, op.Auxiliary.Flow, 1e-9)
	assert.InDelta(t, 0.7899, op.Auxiliary.Fraction, 1e-4)
	assert.Equal(t, RegimeFloorPinned, op.Regime)
}

func TestBlowOff_ThrottledRegime(t *testing.T) {
	s := newTestBlowOff(t)

	t.Run("full power no blow-off", func(t *testing.T) {
		op, err := s.CalculateFromMeasuredPower(452.3, 0)
		require.NoError(t, err)
		assert.InDelta(t, 3138, op.Flow, 1e-9)
		assert.InDelta(t, 1, op.FlowFraction, 1e-12)
		assert.Equal(t, RegimeThrottled, op.Regime)
		require.NotNil(t, op.Auxiliary)
		assert.Zero(t, op.Auxiliary.Flow)
	})

	t.Run("blow-off subtracts from internal flow", func(t *testing.T) {
		op, err := s.CalculateFromMeasuredPower(400, 0.1)
		require.NoError(t, err)
		internal := 2510 + (400-370.9)*628/81.4
		assert.InDelta(t, internal-313.8, op.Flow, 1e-9)
		assert.InDelta(t, 313.8, op.Auxiliary.Flow, 1e-9)
		assert.Equal(t, RegimeThrottled, op.Regime)
	})

	t.Run("flow above floor throttles", func(t *testing.T) {
		op, err := s.CalculateFromMeasuredFlow(2800)
		require.NoError(t, err)
		assert.InDelta(t, 370.9+290*81.4/628, op.Power, 1e-9)
		assert.Equal(t, 2800.0, op.Flow)
		assert.Zero(t, op.Auxiliary.Flow)
		assert.Zero(t, op.Auxiliary.Fraction)
		assert.Equal(t, RegimeThrottled, op.Regime)
	})

	t.Run("floor flow is the boundary", func(t *testing.T) {
		op, err := s.CalculateFromMeasuredFlow(2510)
		require.NoError(t, err)
		assert.Equal(t, 370.9, op.Power)
		assert.Zero(t, op.Auxiliary.Flow)
		assert.Equal(t, RegimeThrottled, op.Regime)
	})
}

func TestBlowOff_FractionsNotClamped(t *testing.T) {
	s := newTestBlowOff(t)

	op, err := s.CalculateFromMeasuredFlow(-100)
	require.NoError(t, err)
	assert.Greater(t, op.Auxiliary.Fraction, 0.8, "blow-off covers the whole deficit")
	assert.Less(t, op.FlowFraction, 0.0)

	op, err = s.CalculateFromPowerFraction(1.1, 0)
	require.NoError(t, err)
	assert.Greater(t, op.FlowFraction, 1.0)
}

func TestBlowOff_MeasuredMatchesFractional(t *testing.T) {
	s := newTestBlowOff(t)

	byFraction, err := s.CalculateFromFlowFraction(0.5)
	require.NoError(t, err)
	byValue, err := s.CalculateFromMeasuredFlow(0.5 * 3138)
	require.NoError(t, err)
	assert.Equal(t, byFraction, byValue)

	byFraction, err = s.CalculateFromPowerFraction(0.9, 0.2)
	require.NoError(t, err)
	byValue, err = s.CalculateFromMeasuredPower(0.9*452.3, 0.2)
	require.NoError(t, err)
	assert.Equal(t, byFraction, byValue)
}

func TestBlowOff_ElectricalMeterReading(t *testing.T) {
	s := newTestBlowOff(t)
	r := ElectricalReading{Voltage: 440, Current: 0.02152, PowerFactor: 50}

	op, err := s.CalculateFromElectrical(r, 0.6798)
	require.NoError(t, err)

	assert.InDelta(t, 370.885, op.Power, 1e-3)
	assert.InDelta(t, 0.82, op.PowerFraction, 1e-5)
	assert.InDelta(t, 376.788, op.Flow, 1e-3)
	assert.InDelta(t, 0.120073, op.FlowFraction, 1e-6)
	require.NotNil(t, op.Auxiliary)
	assert.InDelta(t, 2133.21, op.Auxiliary.Flow, 1e-2)
	assert.Equal(t, 0.6798, op.Auxiliary.Fraction)
	assert.Equal(t, RegimeFloorPinned, op.Regime)
}

func TestBlowOff_ElectricalRoundTrip(t *testing.T) {
	s := newTestBlowOff(t)
	r := ElectricalReading{Voltage: 440, Current: 0.02152, PowerFactor: 50}

	p, err := s.Convention().Power(r, s.Rated().Power)
	require.NoError(t, err)

	fromReading, err := s.CalculateFromElectrical(r, 0.6798)
	require.NoError(t, err)
	fromPower, err := s.CalculateFromMeasuredPower(p, 0.6798)
	require.NoError(t, err)

	assert.Equal(t, fromPower, fromReading)
}

func TestBlowOff_ElectricalKilowatts(t *testing.T) {
	s, err := NewBlowOff(452.3, 3138, 370.9, 2510, WithConvention(KilowattConvention))
	require.NoError(t, err)
	r := ElectricalReading{Voltage: 4160, Current: 60, PowerFactor: 0.9}

	p, err := ThreePhasePower(r)
	require.NoError(t, err)

	fromReading, err := s.CalculateFromElectrical(r, 0.1)
	require.NoError(t, err)
	fromPower, err := s.CalculateFromMeasuredPower(p, 0.1)
	require.NoError(t, err)

	assert.Equal(t, fromPower, fromReading)
	assert.InDelta(t, 389.088, fromReading.Power, 1e-3)
	assert.Equal(t, RegimeThrottled, fromReading.Regime)
}

func TestBlowOff_Idempotent(t *testing.T) {
	s := newTestBlowOff(t)

	first, err := s.CalculateFromPowerFraction(0.82, 0.6798)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.CalculateFromPowerFraction(0.82, 0.6798)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(first.Flow), math.Float64bits(again.Flow))
		assert.Equal(t, first, again)
	}
}

func TestBlowOff_RejectsNonFinite(t *testing.T) {
	s := newTestBlowOff(t)

	_, err := s.CalculateFromPowerFraction(math.NaN(), 0)
	assert.True(t, IsNonFiniteError(err))

	_, err = s.CalculateFromPowerFraction(0.5, math.Inf(1))
	assert.True(t, IsNonFiniteError(err))

	_, err = s.CalculateFromMeasuredFlow(math.Inf(-1))
	assert.True(t, IsNonFiniteError(err))

	_, err = s.CalculateFromElectrical(ElectricalReading{Voltage: math.NaN(), Current: 1, PowerFactor: 1}, 0)
	require.Error(t, err)
	assert.True(t, IsNonFiniteError(err))

	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ControlBlowOff, me.Control, "helper errors are attributed to the strategy")
	assert.Equal(t, "voltage", me.Field)
}

func TestBlowOff_RejectsOverflow(t *testing.T) {
	s := newTestBlowOff(t)

	_, err := s.CalculateFromMeasuredPower(math.MaxFloat64, 0)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNonFiniteResult, CodeOf(err))
}

func TestNewBlowOff_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		args      [4]float64
		field     string
		nonFinite bool
	}{
		{"rated power below floor", [4]float64{300, 3138, 370.9, 2510}, "rated_power", false},
		{"rated power equals floor", [4]float64{370.9, 3138, 370.9, 2510}, "rated_power", false},
		{"rated flow below floor", [4]float64{452.3, 2000, 370.9, 2510}, "rated_flow", false},
		{"zero rated flow", [4]float64{452.3, 0, 370.9, 2510}, "rated_flow", false},
		{"negative floor power", [4]float64{452.3, 3138, -1, 2510}, "floor_power", false},
		{"nan floor flow", [4]float64{452.3, 3138, 370.9, math.NaN()}, "floor_flow", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBlowOff(tt.args[0], tt.args[1], tt.args[2], tt.args[3])
			require.Error(t, err)
			if tt.nonFinite {
				assert.True(t, IsNonFiniteError(err))
			} else {
				assert.True(t, IsCalibrationError(err))
			}

			var me *Error
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
			assert.Equal(t, ControlBlowOff, me.Control)
		})
	}
}

func TestBlowOff_Accessors(t *testing.T) {
	s := newTestBlowOff(t)

	assert.Equal(t, ControlBlowOff, s.Control())
	assert.Equal(t, CalibrationPoint{Power: 452.3, Flow: 3138}, s.Rated())
	assert.Equal(t, CalibrationPoint{Power: 370.9, Flow: 2510}, s.Floor())
	assert.Equal(t, DefaultConvention, s.Convention())
}
