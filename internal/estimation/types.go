package estimation

import (
	"time"
)

// Calculator encapsulates one specific part of the estimation (e.g. "throughput", "initial copy").
type Calculator interface {
	// Name returns the human-readable name of this calculator, used as the key in Engine results.
	Name() string
	// Keys returns the list of Param keys this calculator depends on.
	Keys() []string
	// Calculate runs the estimation using the provided params and returns an Estimation or an error.
	Calculate(params map[string]Param) (Estimation, error)
}

// Param represents an input for a Calculator (can be either user supplied or discovered)
type Param struct {
	Key   string      // Unique identifier (e.g., "data_gb")
	Value interface{} // The actual value (e.g., 1000, "warm", 0.8)
}

// Estimation the result of a Calculator calculation
type Estimation struct {
	Duration time.Duration
	Reason   string
	// Outputs are added to the params seen by calculators registered after this one.
	Outputs []Param
	// Err is set when the calculator failed; Duration is zero in that case.
	Err error
}

// Output returns the output param named key.
func (e Estimation) Output(key string) (Param, bool) {
	for _, p := range e.Outputs {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// Topology describes how the source estate reaches the destination cloud.
type Topology string

const (
	TopologyLocal              Topology = "local"
	TopologyCrossSiteDedicated Topology = "cross_site_dedicated"
	TopologyCrossSiteInternet  Topology = "cross_site_internet"
)

func (t Topology) Valid() bool {
	switch t {
	case TopologyLocal, TopologyCrossSiteDedicated, TopologyCrossSiteInternet:
		return true
	}
	return false
}

// Throughput terms, in tie-break order: when two terms are equal the earlier one is the bottleneck.
const (
	TermSourceNIC     = "source_nic"
	TermTransportLink = "transport_link"
	TermAgent         = "agent"
	TermStorageWrite  = "storage_write"
)
