// Package classifier scores a VM for migration risk and recommends a migration mode.
//
// Classification rules are data. Each Rule is a tagged variant (pattern, threshold or flag)
// interpreted by a small evaluator, so new rule kinds only add an entry to the evaluator table.
// Every rule is evaluated against the VM in isolation and the weights of triggered rules are summed.
package classifier
