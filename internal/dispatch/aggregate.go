package dispatch

import (
	"errors"
	"fmt"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	orbiserrors "github.com/OrbisWeb3/orbisdb-sub001/pkg/errors"
)

// ValidationResult is the outcome of one validate invocation. Err is set
// when the hook failed, panicked or timed out.
type ValidationResult struct {
	PluginID     string
	AssignmentID string
	Verdict      plugin.Verdict
	Err          error
}

// Rejected reports whether the result rejects the stream. Errors reject.
func (r ValidationResult) Rejected() bool {
	return r.Err != nil || !r.Verdict.Accept
}

// Rejection explains why a stream was rejected.
type Rejection struct {
	PluginID     string `json:"plugin_id"`
	AssignmentID string `json:"assignment_id"`
	Reason       string `json:"reason,omitempty"`
	// Err is set when the rejection was derived from a hook failure.
	Err error `json:"-"`
}

// Decision is the combined outcome of every validate invocation.
type Decision struct {
	Accept    bool
	Rejection *Rejection
}

// DecideValidation accepts only when no result rejects. The first rejecting
// result in order supplies the reported reason. An empty sequence accepts.
func DecideValidation(results []ValidationResult) Decision {
	for _, r := range results {
		if !r.Rejected() {
			continue
		}
		reason := r.Verdict.Reason
		if r.Err != nil {
			reason = failureReason(r.PluginID, r.Err)
		}
		return Decision{Rejection: &Rejection{
			PluginID:     r.PluginID,
			AssignmentID: r.AssignmentID,
			Reason:       reason,
			Err:          r.Err,
		}}
	}
	return Decision{Accept: true}
}

// failureReason is the caller-facing reason of an error-derived rejection.
// The hook's error text stays in Rejection.Err and the logs.
func failureReason(pluginID string, err error) string {
	class := "failed"
	var herr *orbiserrors.HookExecutionError
	switch {
	case errors.As(err, &herr) && herr.Timeout:
		class = "timed out"
	case errors.Is(err, plugin.ErrPanic):
		class = "panicked"
	}
	return fmt.Sprintf("validation by %s %s", pluginID, class)
}

// MergeMetadata shallow-merges partial metadata objects. Later entries win on
// key collision and nil entries are skipped. The result is never nil.
func MergeMetadata(results []map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, partial := range results {
		for k, v := range partial {
			merged[k] = v
		}
	}
	return merged
}
