package smtp

import (
	"fmt"
	"strings"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// State is a position in the verification dialog.
type State int

const (
	StateConnected State = iota
	StateGreeted
	StateStartTLS
	StateTLSEhlo
	StateMailFrom
	StateRcptTo
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateGreeted:
		return "greeted"
	case StateStartTLS:
		return "starttls"
	case StateTLSEhlo:
		return "tls_ehlo"
	case StateMailFrom:
		return "mail_from"
	case StateRcptTo:
		return "rcpt_to"
	case StateQuit:
		return "quit"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reply is one complete, reassembled server reply.
type Reply struct {
	Code  int
	Lines []string // text after the code on each line
}

// Text joins the reply lines with newlines.
func (r Reply) Text() string {
	return strings.Join(r.Lines, "\n")
}

// advertises reports whether an EHLO reply lists the extension keyword.
func (r Reply) advertises(keyword string) bool {
	for _, l := range r.Lines {
		f := strings.Fields(l)
		if len(f) > 0 && strings.EqualFold(f[0], keyword) {
			return true
		}
	}
	return false
}

// Dialog carries the fixed inputs of one session.
type Dialog struct {
	Helo     string
	MailFrom string
	Rcpt     string
	Rules    Rules
}

// Step is the result of feeding one reply to the state machine.
type Step struct {
	Next State
	// UpgradeTLS asks the runner to perform the TLS handshake on the current
	// transport before sending Send.
	UpgradeTLS bool
	Send       string
	// Outcome is set when the session has reached a terminal result. Send may
	// still carry a final command (QUIT) to write before closing.
	Outcome *types.SmtpOutcome
}

func terminal(o types.SmtpOutcome) Step {
	return Step{Next: StateQuit, Outcome: &o}
}

// Transition is the pure state function of the dialog.
func Transition(s State, r Reply, d Dialog) Step {
	switch s {
	case StateConnected:
		if r.Code == 220 {
			return Step{Next: StateGreeted, Send: "EHLO " + d.Helo}
		}
		return terminal(types.Coded(false, r.Code, types.ErrBannerRejected))

	case StateGreeted:
		if r.Code != 250 {
			return terminal(types.Coded(false, r.Code, types.ErrEhloRejected))
		}
		if r.advertises("STARTTLS") {
			return Step{Next: StateStartTLS, Send: "STARTTLS"}
		}
		return Step{Next: StateMailFrom, Send: mailFrom(d)}

	case StateStartTLS:
		if r.Code == 220 {
			return Step{Next: StateTLSEhlo, UpgradeTLS: true, Send: "EHLO " + d.Helo}
		}
		// refusal is tolerated; carry on in plaintext
		return Step{Next: StateMailFrom, Send: mailFrom(d)}

	case StateTLSEhlo:
		if r.Code == 250 {
			return Step{Next: StateMailFrom, Send: mailFrom(d)}
		}
		return terminal(types.Coded(false, r.Code, types.ErrEhloAfterTLSRejected))

	case StateMailFrom:
		if r.Code == 250 {
			return Step{Next: StateRcptTo, Send: "RCPT TO:<" + d.Rcpt + ">"}
		}
		return terminal(types.Coded(false, r.Code, types.ErrMailFromRejected))

	case StateRcptTo:
		o := classifyRcpt(r, d.Rules)
		return Step{Next: StateQuit, Send: "QUIT", Outcome: &o}
	}

	// QUIT acknowledgement and anything after it is ignored.
	return Step{Next: StateQuit}
}

func mailFrom(d Dialog) string {
	return "MAIL FROM:<" + d.MailFrom + ">"
}

func classifyRcpt(r Reply, rules Rules) types.SmtpOutcome {
	if r.Code == 250 || r.Code == 251 {
		return types.Coded(true, r.Code, types.ErrNone)
	}
	if kind, ok := rules.Match(r.Text()); ok {
		return types.Coded(false, r.Code, kind)
	}
	if r.Code >= 400 && r.Code < 500 {
		return types.Coded(false, r.Code, types.ErrGreylisted)
	}
	return types.Coded(false, r.Code, types.ErrNone)
}
