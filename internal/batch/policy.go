// internal/batch/policy.go
package batch

import "github.com/user/logscribe/internal/types"

// FailurePolicy decides whether a batch continues after a failed item. It
// is consulted only by the runner's failure handler.
type FailurePolicy struct {
	ContinueOnError bool
}

// Continue reports whether the batch should move on after result.
func (p FailurePolicy) Continue(result *types.ItemResult) bool {
	if result.Succeeded() {
		return true
	}
	return p.ContinueOnError
}
