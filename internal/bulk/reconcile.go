package bulk

import (
	"fmt"
	"log/slog"
	"strings"
)

// Failure pairs a submitted operation with the reason it was refused.
type Failure struct {
	Op     *Operation
	Reason string
}

// Outcome is the reconciled result of one submitted batch.
type Outcome struct {
	Succeeded []*Operation
	Failed    []Failure
}

// Summary renders a compact failure report for logging, or an empty
// string when the batch was fully acknowledged.
func (o *Outcome) Summary() string {
	if len(o.Failed) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d failures", len(o.Failed))
	for _, f := range o.Failed {
		fmt.Fprintf(&sb, "; %s/%s: %s", f.Op.Type, f.Op.ID, f.Reason)
	}
	return sb.String()
}

// Reconcile pairs a bulk response with the operations that produced
// it, item by item in submission order. A response whose item count
// does not match the sent batch cannot be trusted and is rejected
// outright: no operation from such a batch is considered settled.
//
// The top-level errors flag is advisory only. Some servers leave it
// stale, so per-item inspection decides success; a disagreement is
// logged and otherwise ignored.
func Reconcile(logger *slog.Logger, sent []*Operation, resp *RawResponse) (*Outcome, error) {
	if resp == nil || len(resp.Items) == 0 {
		return nil, fmt.Errorf("bulk response carried no items for %d operations", len(sent))
	}
	if len(resp.Items) != len(sent) {
		return nil, fmt.Errorf("bulk response item count %d does not match %d sent operations",
			len(resp.Items), len(sent))
	}

	out := &Outcome{}
	for i, wrapper := range resp.Items {
		op := sent[i]
		item := wrapper.Result()
		if item == nil {
			out.Failed = append(out.Failed, Failure{Op: op, Reason: "item result missing"})
			continue
		}
		if item.IsFailure() {
			out.Failed = append(out.Failed, Failure{Op: op, Reason: item.FailureReason()})
			continue
		}
		out.Succeeded = append(out.Succeeded, op)
	}

	if resp.Errors != (len(out.Failed) > 0) {
		logger.Warn("bulk errors flag disagrees with item scan",
			slog.Bool("errors_flag", resp.Errors),
			slog.Int("item_failures", len(out.Failed)))
	}

	return out, nil
}
