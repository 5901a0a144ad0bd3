package compressor

import "fmt"

// ElectricalReading is a three-phase meter reading.
type ElectricalReading struct {
	Voltage     float64 `json:"voltage" yaml:"voltage"`
	Current     float64 `json:"current" yaml:"current"`
	PowerFactor float64 `json:"power_factor" yaml:"power_factor"`
}

// Basis says what the scaled product Factor*V*I*PF measures.
type Basis string

const (
	// BasisRatedFraction reads the product as a fraction of rated power.
	BasisRatedFraction Basis = "rated_fraction"
	// BasisAbsolute reads the product as power in the calibration's unit.
	BasisAbsolute Basis = "absolute"
)

// ParseBasis converts a string to a Basis. The empty string selects the
// default convention's basis.
func ParseBasis(s string) (Basis, error) {
	switch b := Basis(s); b {
	case "":
		return DefaultConvention.Basis, nil
	case BasisRatedFraction, BasisAbsolute:
		return b, nil
	default:
		return "", fmt.Errorf("unknown electrical basis %q (want %s or %s)", s, BasisRatedFraction, BasisAbsolute)
	}
}

// ElectricalConvention scales the three-phase product V*I*PF and says how the
// scaled value maps onto the calibration's power unit.
type ElectricalConvention struct {
	Factor float64 `json:"factor"`
	Basis  Basis   `json:"basis"`
}

// MeterFactor is the 1.732/1000 constant of plant meter sheets. Readings are
// taken as volts, kiloamps and a power factor in percent, and the product is
// the load as a fraction of rated power:
//
//	440 V, 0.02152 kA, 50 % -> 0.82 of rated
const MeterFactor = 1.732 / 1000

// ThreePhaseKilowatts is sqrt(3)/1000: volts, amps and a power factor in
// [0,1] give kilowatts.
const ThreePhaseKilowatts = 1.7320508075688772 / 1000

// DefaultConvention is the meter-sheet convention.
var DefaultConvention = ElectricalConvention{Factor: MeterFactor, Basis: BasisRatedFraction}

// KilowattConvention converts SI readings straight to kW. It suits machines
// calibrated in kW whose readings come in volts, amps and a 0-1 power factor.
var KilowattConvention = ElectricalConvention{Factor: ThreePhaseKilowatts, Basis: BasisAbsolute}

// NewConvention fills the unset parts of a convention from DefaultConvention
// and checks the result. A nil factor keeps the default factor.
func NewConvention(factor *float64, basis string) (ElectricalConvention, error) {
	c := DefaultConvention
	if factor != nil {
		c.Factor = *factor
	}
	b, err := ParseBasis(basis)
	if err != nil {
		return ElectricalConvention{}, calibrationError("", "electrical.basis", "%v", err)
	}
	c.Basis = b
	if err := c.validate(); err != nil {
		return ElectricalConvention{}, err
	}
	return c, nil
}

func (c ElectricalConvention) validate() error {
	if !isFinite(c.Factor) || c.Factor <= 0 {
		return calibrationError("", "electrical.factor", "must be a positive finite number, got %v", c.Factor)
	}
	if c.Basis != BasisRatedFraction && c.Basis != BasisAbsolute {
		return calibrationError("", "electrical.basis", "unknown basis %q", c.Basis)
	}
	return nil
}

// Power converts a reading to real power. ratedPower scales the result when
// the basis is BasisRatedFraction and is ignored otherwise.
func (c ElectricalConvention) Power(r ElectricalReading, ratedPower float64) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	if err := requireFinite("",
		field{"voltage", r.Voltage},
		field{"current", r.Current},
		field{"power_factor", r.PowerFactor},
	); err != nil {
		return 0, err
	}

	p := c.Factor * r.Voltage * r.Current * r.PowerFactor
	if c.Basis == BasisRatedFraction {
		p *= ratedPower
	}
	if !isFinite(p) {
		return 0, &Error{Code: ErrCodeNonFiniteResult, Field: "power", Message: "electrical power is not finite"}
	}
	return p, nil
}

// ThreePhasePower converts an SI reading to kW.
func ThreePhasePower(r ElectricalReading) (float64, error) {
	return KilowattConvention.Power(r, 0)
}
