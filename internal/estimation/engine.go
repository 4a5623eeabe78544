package estimation

import "fmt"

// Engine orchestrates Calculator objects and aggregates their results
type Engine struct {
	calculators []Calculator
}

// NewEngine creates a new Engine with no calculators registered.
func NewEngine() *Engine {
	return &Engine{
		calculators: make([]Calculator, 0),
	}
}

// Register adds a Calculator to participate in the estimation.
// Calculators are executed in the order they are registered.
// Register panics if a calculator with the same Name() is already registered,
// as duplicate names would silently overwrite results in Run.
func (e *Engine) Register(c Calculator) {
	for _, existing := range e.calculators {
		if existing.Name() == c.Name() {
			panic(fmt.Sprintf("estimation: calculator %q already registered", c.Name()))
		}
	}
	e.calculators = append(e.calculators, c)
}

// Run executes all registered calculators against the provided params.
// Outputs of a successful calculator are visible to the calculators registered after it.
// A failing calculator does not stop the run; its error is kept in the Estimation.
func (e *Engine) Run(inputs []Param) map[string]Estimation {
	// Convert slice to map for lookups by Calculators
	paramMap := make(map[string]Param, len(inputs))
	for _, p := range inputs {
		paramMap[p.Key] = p
	}

	results := make(map[string]Estimation, len(e.calculators))
	for _, calc := range e.calculators {
		est, err := calc.Calculate(paramMap)
		if err != nil {
			results[calc.Name()] = Estimation{
				Duration: 0,
				Reason:   fmt.Sprintf("Error: %v", err),
				Err:      err,
			}
			continue
		}
		for _, o := range est.Outputs {
			paramMap[o.Key] = o
		}
		results[calc.Name()] = est
	}
	return results
}

// FirstError returns the error of the first failed calculator, in registration order.
func (e *Engine) FirstError(results map[string]Estimation) error {
	for _, calc := range e.calculators {
		if r, ok := results[calc.Name()]; ok && r.Err != nil {
			return fmt.Errorf("%s: %w", calc.Name(), r.Err)
		}
	}
	return nil
}
