package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

// policyRuleName is the rule a policy module defines with the concerns it raises.
const policyRuleName = "concerns"

// compilePolicy compiles the Rego v1 module of a policy rule. The rule triggers
// when the module raises at least one concern for the VM; the concern labels
// become the matched value.
func compilePolicy(r Rule) (func(VM) (string, bool), error) {
	if strings.TrimSpace(r.Policy) == "" {
		return nil, &ValidationError{RuleID: r.ID, Reason: "policy rule without policy"}
	}
	module, err := ast.ParseModuleWithOpts(r.ID+".rego", r.Policy, ast.ParserOptions{
		RegoVersion: ast.RegoV1,
	})
	if err != nil {
		return nil, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("failed to parse policy: %v", err)}
	}

	compiler := ast.NewCompiler().WithCapabilities(deterministicCapabilities())
	compiler.Compile(map[string]*ast.Module{r.ID: module})
	if compiler.Failed() {
		return nil, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("policy compilation failed: %v", compiler.Errors)}
	}

	query := module.Package.Path.String() + "." + policyRuleName
	prepared, err := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.SetRegoVersion(ast.RegoV1),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("failed to prepare %s: %v", query, err)}
	}

	return func(vm VM) (string, bool) {
		labels, err := evalConcerns(prepared, policyInput(vm))
		if err != nil {
			zap.S().Named("classifier").Warnw("policy evaluation failed", "rule", r.ID, "vm", vm.Name, "error", err)
			return "", false
		}
		if len(labels) == 0 {
			return "", false
		}
		return strings.Join(labels, "; "), true
	}, nil
}

// deterministicCapabilities drops the builtins whose result depends on more
// than their arguments, such as time.now_ns, rand.intn or http.send.
func deterministicCapabilities() *ast.Capabilities {
	caps := ast.CapabilitiesForThisVersion()
	builtins := make([]*ast.Builtin, 0, len(caps.Builtins))
	for _, b := range caps.Builtins {
		if b.Nondeterministic {
			continue
		}
		builtins = append(builtins, b)
	}
	caps.Builtins = builtins
	return caps
}

// policyInput exposes the VM under the same field names the other rule kinds use.
func policyInput(vm VM) map[string]any {
	input := make(map[string]any, len(stringFields)+len(numericFields)+1)
	for name, get := range stringFields {
		input[name] = get(vm)
	}
	for name, get := range numericFields {
		input[name] = get(vm)
	}
	flags := vm.Flags
	if flags == nil {
		flags = []string{}
	}
	input["flags"] = flags
	return input
}

// evalConcerns returns the sorted labels of the raised concerns. A concern is
// a string or an object carrying a label, an id or an assessment.
func evalConcerns(prepared rego.PreparedEvalQuery, input map[string]any) ([]string, error) {
	rs, err := prepared.Eval(context.Background(), rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	raw, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a set or an array, got %T", policyRuleName, rs[0].Expressions[0].Value)
	}

	labels := make([]string, 0, len(raw))
	for _, item := range raw {
		switch c := item.(type) {
		case string:
			labels = append(labels, c)
		case map[string]any:
			label := ""
			for _, key := range []string{"label", "id", "assessment"} {
				if s, ok := c[key].(string); ok && s != "" {
					label = s
					break
				}
			}
			if label == "" {
				return nil, fmt.Errorf("concern without label: %v", c)
			}
			labels = append(labels, label)
		default:
			return nil, fmt.Errorf("unexpected concern type %T", item)
		}
	}
	sort.Strings(labels)
	return labels, nil
}
