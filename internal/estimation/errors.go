package estimation

import "fmt"

// UnderflowError is returned when a throughput term is zero or negative after derating.
type UnderflowError struct {
	Term string
	MBps float64
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("capacity underflow: %s throughput is %.2f MB/s", e.Term, e.MBps)
}
