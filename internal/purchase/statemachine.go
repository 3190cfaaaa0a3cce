// AngelaMos | 2026
// statemachine.go

package purchase

import (
	"strings"

	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Source is the channel a status signal arrived through.
type Source string

const (
	SourceCallback Source = "CALLBACK"
	SourcePoll     Source = "POLL"
	SourceManual   Source = "MANUAL"
	SourceExpiry   Source = "EXPIRY"
)

// Verdict is what a provider status string means for the purchase.
type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictSuccess
	VerdictFailure
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailure:
		return "failure"
	default:
		return "pending"
	}
}

type statusTable struct {
	success map[string]struct{}
	failure map[string]struct{}
}

func newStatusTable(success, failure []string) statusTable {
	t := statusTable{
		success: make(map[string]struct{}, len(success)),
		failure: make(map[string]struct{}, len(failure)),
	}
	for _, s := range success {
		t.success[s] = struct{}{}
	}
	for _, f := range failure {
		t.failure[f] = struct{}{}
	}
	return t
}

var statusTables = map[gateway.Method]statusTable{
	gateway.MethodInvoice: newStatusTable(
		[]string{"PAID", "SETTLED"},
		[]string{"EXPIRED", "FAILED"},
	),
	gateway.MethodQRIS: newStatusTable(
		[]string{"SUCCEEDED", "COMPLETED", "PAID"},
		[]string{"EXPIRED", "FAILED"},
	),
	gateway.MethodBankTransfer: newStatusTable(
		[]string{"PAID", "COMPLETED", "SETTLED"},
		[]string{"EXPIRED", "FAILED"},
	),
	gateway.MethodEWallet: newStatusTable(
		[]string{"SUCCEEDED", "PAID"},
		[]string{"FAILED", "VOIDED", "EXPIRED"},
	),
}

var fallbackTable = func() statusTable {
	var success, failure []string
	for _, t := range statusTables {
		for s := range t.success {
			success = append(success, s)
		}
		for f := range t.failure {
			failure = append(failure, f)
		}
	}
	return newStatusTable(success, failure)
}()

// Normalize maps a raw provider status onto a verdict using the table for
// method. Unknown statuses are pending: acknowledged, no transition.
func Normalize(method gateway.Method, raw string) Verdict {
	status := strings.ToUpper(strings.TrimSpace(raw))
	if status == "" {
		return VerdictPending
	}

	table, ok := statusTables[method]
	if !ok {
		table = fallbackTable
	}

	if _, ok := table.success[status]; ok {
		return VerdictSuccess
	}
	if _, ok := table.failure[status]; ok {
		return VerdictFailure
	}
	return VerdictPending
}
