// Package estimation defines a pluggable migration estimation calculator.
//
// Each part of the calculation is encapsulated in one specific Calculator, and calculation results are aggregated by the Engine.
// Calculators run in registration order and may publish outputs that later calculators consume as params,
// which is how a VM's throughput feeds its initial copy and cutover durations.
package estimation
