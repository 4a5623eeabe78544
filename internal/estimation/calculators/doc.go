// Package calculators provides concrete Calculator implementations for the estimation engine.
//
// The per-VM chain is DataVolume, Throughput, InitialCopy then Cutover: each publishes its
// result as a param for the next one. WaveValidation works on a whole wave and sizes its validating phase.
package calculators
