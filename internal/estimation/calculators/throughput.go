package calculators

import (
	"fmt"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

const (
	DefaultUsablePct  = 100.0
	DefaultAgentCount = 2
	DefaultAgentSlots = 8
)

var _ estimation.Calculator = (*Throughput)(nil)

// Term is one candidate limit on a VM's transfer rate.
type Term struct {
	Name string
	MBps float64
}

// Throughput computes the effective transfer rate of one VM as the minimum of
// the source NIC, the transport link (cross-site only), the VM's share of agent
// ingress and the destination storage write rate, each after derating.
type Throughput struct{}

func NewThroughput() *Throughput {
	return &Throughput{}
}

func (c *Throughput) Name() string { return "Throughput" }

func (c *Throughput) Keys() []string {
	return []string{
		ParamTopology,
		ParamSourceNICMbps,
		ParamLinkMbps,
		ParamAgentCount,
		ParamAgentSlots,
		ParamAgentNICMbps,
		ParamStorageWriteMBps,
	}
}

// mbitToMBps converts a link speed in Mbit/s derated by pct percent into MB/s.
func mbitToMBps(mbps, pct float64) float64 {
	return mbps * pct / 100 / 8
}

// Terms returns the throughput terms in tie-break order.
func (c *Throughput) Terms(params map[string]estimation.Param) ([]Term, error) {
	topology := estimation.TopologyLocal
	if p, ok := params[ParamTopology]; ok {
		s, err := getString(p)
		if err != nil {
			return nil, err
		}
		topology = estimation.Topology(s)
		if !topology.Valid() {
			return nil, fmt.Errorf("unknown topology %q", s)
		}
	}

	nic, err := requireFloat(params, ParamSourceNICMbps)
	if err != nil {
		return nil, err
	}
	nicPct, err := optionalFloat(params, ParamSourceNICUsablePct, DefaultUsablePct)
	if err != nil {
		return nil, err
	}
	terms := []Term{{Name: estimation.TermSourceNIC, MBps: mbitToMBps(nic, nicPct)}}

	if topology != estimation.TopologyLocal {
		link, err := requireFloat(params, ParamLinkMbps)
		if err != nil {
			return nil, err
		}
		linkPct, err := optionalFloat(params, ParamLinkUsablePct, DefaultUsablePct)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{Name: estimation.TermTransportLink, MBps: mbitToMBps(link, linkPct)})
	}

	agent, err := c.agentShare(params)
	if err != nil {
		return nil, err
	}
	terms = append(terms, Term{Name: estimation.TermAgent, MBps: agent})

	storage, err := requireFloat(params, ParamStorageWriteMBps)
	if err != nil {
		return nil, err
	}
	storagePct, err := optionalFloat(params, ParamStorageWriteUsablePct, DefaultUsablePct)
	if err != nil {
		return nil, err
	}
	terms = append(terms, Term{Name: estimation.TermStorageWrite, MBps: storage * storagePct / 100})

	return terms, nil
}

// agentShare is the per-VM share of aggregate agent ingress: agent_count agents,
// each bounded by its NIC and optional throughput cap, spread over every concurrent slot.
func (c *Throughput) agentShare(params map[string]estimation.Param) (float64, error) {
	count := DefaultAgentCount
	if p, ok := params[ParamAgentCount]; ok {
		v, err := getInt(p)
		if err != nil {
			return 0, err
		}
		count = v
	}
	slots := DefaultAgentSlots
	if p, ok := params[ParamAgentSlots]; ok {
		v, err := getInt(p)
		if err != nil {
			return 0, err
		}
		slots = v
	}
	if count <= 0 || slots <= 0 {
		return 0, nil
	}

	nic, err := requireFloat(params, ParamAgentNICMbps)
	if err != nil {
		return 0, err
	}
	nicPct, err := optionalFloat(params, ParamAgentNICUsablePct, DefaultUsablePct)
	if err != nil {
		return 0, err
	}
	perAgent := mbitToMBps(nic, nicPct)

	capMBps, err := optionalFloat(params, ParamAgentThroughputMBps, 0)
	if err != nil {
		return 0, err
	}
	if capMBps > 0 && capMBps < perAgent {
		perAgent = capMBps
	}

	aggregate := float64(count) * perAgent
	return aggregate / float64(count*slots), nil
}

// Bottleneck returns the smallest term. A later term only wins when strictly smaller.
func Bottleneck(terms []Term) Term {
	var min Term
	for i, t := range terms {
		if i == 0 || t.MBps < min.MBps {
			min = t
		}
	}
	return min
}

func (c *Throughput) Calculate(params map[string]estimation.Param) (estimation.Estimation, error) {
	terms, err := c.Terms(params)
	if err != nil {
		return estimation.Estimation{}, err
	}

	b := Bottleneck(terms)
	if b.MBps <= 0 {
		return estimation.Estimation{}, &estimation.UnderflowError{Term: b.Name, MBps: b.MBps}
	}

	return estimation.Estimation{
		Reason: fmt.Sprintf("%s: %.1f MB/s", b.Name, b.MBps),
		Outputs: []estimation.Param{
			{Key: ParamEffectiveMBps, Value: b.MBps},
			{Key: ParamBottleneck, Value: b.Name},
		},
	}, nil
}
