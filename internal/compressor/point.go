package compressor

import "fmt"

// Control identifies a compressor control strategy.
type Control string

const (
	ControlBlowOff          Control = "blow_off"
	ControlLoadUnload       Control = "load_unload"
	ControlModulationUnload Control = "modulation_unload"
)

// ParseControl validates a control name.
func ParseControl(s string) (Control, error) {
	switch c := Control(s); c {
	case ControlBlowOff, ControlLoadUnload, ControlModulationUnload:
		return c, nil
	default:
		return "", fmt.Errorf("unknown control %q: must be one of %v", s, Controls())
	}
}

// Controls lists every supported control strategy.
func Controls() []Control {
	return []Control{ControlBlowOff, ControlLoadUnload, ControlModulationUnload}
}

// Regime is the physical regime that resolved an operating point.
type Regime string

const (
	RegimeThrottled   Regime = "throttled"
	RegimeFloorPinned Regime = "floor_pinned"
	RegimeLoadUnload  Regime = "load_unload"
	RegimeModulation  Regime = "modulation"
	RegimeUnload      Regime = "unload"
)

// Auxiliary holds the strategy-specific secondary flow: the vented flow for
// blow-off control, the flow shed by unloading for modulation-with-unload.
type Auxiliary struct {
	Flow     float64 `json:"flow"`
	Fraction float64 `json:"fraction"`
}

// OperatingPoint is the result of every query. Fractions are relative to the
// rated point and are not clamped.
type OperatingPoint struct {
	Power         float64    `json:"power"`
	PowerFraction float64    `json:"power_fraction"`
	Flow          float64    `json:"flow"`
	FlowFraction  float64    `json:"flow_fraction"`
	Auxiliary     *Auxiliary `json:"auxiliary,omitempty"`
	Regime        Regime     `json:"regime"`
}

// Entry identifies which known quantity a query supplies.
type Entry string

const (
	EntryPowerFraction Entry = "power_fraction"
	EntryFlowFraction  Entry = "flow_fraction"
	EntryMeasuredPower Entry = "measured_power"
	EntryMeasuredFlow  Entry = "measured_flow"
	EntryElectrical    Entry = "electrical"
)

// ParseEntry validates an entry name.
func ParseEntry(s string) (Entry, error) {
	switch e := Entry(s); e {
	case EntryPowerFraction, EntryFlowFraction, EntryMeasuredPower, EntryMeasuredFlow, EntryElectrical:
		return e, nil
	default:
		return "", fmt.Errorf("unknown entry %q: must be one of %v", s, Entries())
	}
}

// Entries lists every entry point in canonical order.
func Entries() []Entry {
	return []Entry{EntryPowerFraction, EntryFlowFraction, EntryMeasuredPower, EntryMeasuredFlow, EntryElectrical}
}

// suppliesPower reports whether the entry resolves to a known power.
func (e Entry) suppliesPower() bool {
	return e == EntryPowerFraction || e == EntryMeasuredPower || e == EntryElectrical
}

// Query is the request record accepted by Strategy.Evaluate.
//
// Value carries the fraction or measured value for every entry except
// EntryElectrical, which reads Reading instead. AuxiliaryFraction is the
// commanded blow-off fraction; it only applies to power-supplying entries of
// a blow-off strategy and must be zero everywhere else.
type Query struct {
	Entry             Entry             `json:"entry" yaml:"entry"`
	Value             float64           `json:"value,omitempty" yaml:"value,omitempty"`
	Reading           ElectricalReading `json:"reading,omitempty" yaml:"reading,omitempty"`
	AuxiliaryFraction float64           `json:"auxiliary_fraction,omitempty" yaml:"auxiliary_fraction,omitempty"`
}
