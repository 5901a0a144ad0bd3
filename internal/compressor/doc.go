// Package compressor models the steady-state power/flow behaviour of a
// centrifugal air compressor under its three standard control strategies.
//
// # Strategies
//
// The set of control strategies is closed:
//
//   - BlowOff: inlet throttling down to a surge floor, then venting the surplus
//     through a blow-off valve
//   - LoadUnload: cycling between full load and an idle (no-load) state
//   - ModulationUnload: throttling above a transition point, unloading below it
//
// Each strategy is calibrated once from a handful of nameplate numbers and then
// queried through five entry points. Every entry point reduces its input to one
// absolute known quantity (power or delivered flow) and hands it to the
// strategy's single solver, so the regime logic lives in one place per strategy.
//
// # Entry points
//
//	power fraction (+ blow-off fraction)   -> forward
//	flow fraction                          -> inverse
//	measured power (+ blow-off fraction)   -> forward, absolute
//	measured flow                          -> inverse, absolute
//	electrical reading (+ blow-off)        -> converted to power, then measured power
//
// # Units
//
// Power and flow units are whatever the calibration numbers use (typically kW
// and acfm). Electrical readings are converted with an ElectricalConvention.
// The default is the meter-sheet convention: 1.732*V*I*PF/1000 with volts,
// kiloamps and a percent power factor is the load as a fraction of rated
// power. KilowattConvention takes volts, amps and a [0,1] power factor and
// yields kW.
//
// # Recalibration
//
// Achievable flow depends on the plant's discharge pressure. AdjustDischargePressure
// fits a capacity curve through reference (pressure, capacity) points and returns
// a NEW strategy whose rated (and transition) flows are re-anchored. Power
// calibration never changes.
//
// # Concurrency
//
// Strategies are immutable values. Any number of goroutines may query the same
// strategy concurrently; recalibration never mutates the receiver.
package compressor
