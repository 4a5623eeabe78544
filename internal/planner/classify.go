package planner

import (
	"context"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/pkg/worker"
)

type Classification struct {
	Key string
	classifier.Result
}

// Classify scores every VM on the pool. Results keep the input order. A
// cancelled context abandons the pass and returns the context error.
func Classify(ctx context.Context, pool *worker.Pool, c *classifier.Classifier, vms []VM) ([]Classification, error) {
	return worker.Map(ctx, pool, len(vms), func(_ context.Context, i int) Classification {
		return Classification{Key: vms[i].Key, Result: c.Classify(vms[i].classifierVM())}
	})
}
