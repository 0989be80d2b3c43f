package types

import "strings"

// Reachability is the final verdict for an address.
type Reachability string

const (
	Safe    Reachability = "safe"
	Risky   Reachability = "risky"
	Invalid Reachability = "invalid"
	Unknown Reachability = "unknown"
)

// ErrorKind is the structured reason an SMTP probe did not yield a clean answer.
type ErrorKind string

const (
	ErrNone                 ErrorKind = ""
	ErrBannerRejected       ErrorKind = "banner_rejected"
	ErrEhloRejected         ErrorKind = "ehlo_rejected"
	ErrEhloAfterTLSRejected ErrorKind = "ehlo_after_tls_rejected"
	ErrMailFromRejected     ErrorKind = "mail_from_rejected"
	ErrIPBlocked            ErrorKind = "ip_blocked"
	ErrGreylisted           ErrorKind = "greylisted"
	ErrTimeout              ErrorKind = "timeout"
	ErrConnectionReset      ErrorKind = "connection_reset"
	ErrConnectionClosed     ErrorKind = "connection_closed"
	ErrPort25Blocked        ErrorKind = "port25_blocked"
	ErrTLS                  ErrorKind = "tls_error"
	ErrAllMxFailed          ErrorKind = "all_mx_failed"
	ErrConnectionFailed     ErrorKind = "connection_failed"
)

// IsConnectivity reports whether the error says nothing about the mailbox and
// another MX host is worth trying.
func (k ErrorKind) IsConnectivity() bool {
	switch k {
	case ErrTimeout, ErrPort25Blocked, ErrConnectionReset, ErrConnectionClosed:
		return true
	}
	return false
}

// Provider is an informational mailbox-provider fingerprint derived from MX hosts.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderYahoo   Provider = "yahoo"
	ProviderOther   Provider = "other"
)

// PortReachability is the process-wide outbound SMTP connectivity diagnostic.
type PortReachability string

const (
	PortUnknown PortReachability = "unknown"
	PortOpen    PortReachability = "open"
	PortBlocked PortReachability = "blocked"
)

// EmailAddress is a trimmed, lower-cased address string.
type EmailAddress string

func NewEmailAddress(raw string) EmailAddress {
	return EmailAddress(strings.ToLower(strings.TrimSpace(raw)))
}

func (e EmailAddress) String() string {
	return string(e)
}

// LocalPart returns everything before the last '@', or the whole address
// when there is none.
func (e EmailAddress) LocalPart() string {
	at := strings.LastIndex(string(e), "@")
	if at == -1 {
		return string(e)
	}
	return string(e)[:at]
}

// Domain returns everything after the last '@', or "" when there is none.
func (e EmailAddress) Domain() string {
	at := strings.LastIndex(string(e), "@")
	if at == -1 {
		return ""
	}
	return string(e)[at+1:]
}

type MxHost struct {
	Hostname string `json:"hostname"`
	Priority uint16 `json:"priority"`
}

// Hostnames returns the host names in list order.
func Hostnames(hosts []MxHost) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Hostname)
	}
	return out
}

// SmtpOutcome is the result of one connection attempt against one MX host.
type SmtpOutcome struct {
	Deliverable  bool      `json:"deliverable"`
	ResponseCode *int      `json:"responseCode"`
	Error        ErrorKind `json:"error,omitempty"`
}

// Code returns the response code, or 0 when the server never answered with one.
func (o SmtpOutcome) Code() int {
	if o.ResponseCode == nil {
		return 0
	}
	return *o.ResponseCode
}

// Failed builds an outcome without a response code.
func Failed(kind ErrorKind) SmtpOutcome {
	return SmtpOutcome{Error: kind}
}

// Coded builds an outcome carrying the server's reply code. Codes outside
// the 3-digit range are dropped.
func Coded(deliverable bool, code int, kind ErrorKind) SmtpOutcome {
	o := SmtpOutcome{Deliverable: deliverable, Error: kind}
	if code >= 100 && code <= 999 {
		c := code
		o.ResponseCode = &c
	}
	return o
}

type SyntaxResult struct {
	Valid bool `json:"valid"`
}

type MxResult struct {
	Found   bool     `json:"found"`
	Records []string `json:"records"`
}

// VerificationResult is the immutable per-address record. Reachable is derived
// from the other fields only.
type VerificationResult struct {
	Email        string       `json:"email"`
	Reachable    Reachability `json:"reachable"`
	Syntax       SyntaxResult `json:"syntax"`
	MX           MxResult     `json:"mx"`
	SMTP         SmtpOutcome  `json:"smtp"`
	IsCatchAll   bool         `json:"isCatchAll"`
	IsDisposable bool         `json:"isDisposable"`
	Provider     Provider     `json:"provider,omitempty"`
}
