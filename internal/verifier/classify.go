package verifier

import "github.com/cruxstack/email-reachability-go/internal/types"

// Signals are the inputs of the reachability decision.
type Signals struct {
	SyntaxValid  bool
	MxFound      bool
	SMTP         types.SmtpOutcome
	IsCatchAll   bool
	IsDisposable bool
}

// Classify applies the ordered decision table; the first matching row wins.
func Classify(s Signals) types.Reachability {
	switch {
	case !s.SyntaxValid:
		return types.Invalid
	case !s.MxFound:
		return types.Invalid
	case s.SMTP.Error == types.ErrIPBlocked, s.SMTP.Error == types.ErrGreylisted:
		return types.Unknown
	case s.SMTP.Deliverable && !s.IsCatchAll:
		return types.Safe
	case s.SMTP.Deliverable && s.IsCatchAll:
		return types.Risky
	case s.SMTP.Code() >= 500:
		return types.Invalid
	case s.IsDisposable:
		return types.Risky
	}
	return types.Unknown
}
