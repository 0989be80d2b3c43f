// Package reputation holds the static domain tables consulted during
// verification: known disposable-mail domains and MX-based provider signatures.
package reputation

import (
	"strings"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// Signature maps MX host substrings to a provider.
type Signature struct {
	Provider types.Provider `yaml:"name"`
	Matches  []string       `yaml:"matches"`
}

// Table is immutable once built and safe for concurrent use.
type Table struct {
	disposable map[string]struct{}
	signatures []Signature
}

// New builds a table from a domain list and an ordered signature list.
// Signatures are evaluated in the given order; the first match wins.
func New(disposable []string, signatures []Signature) *Table {
	t := &Table{
		disposable: make(map[string]struct{}, len(disposable)),
		signatures: make([]Signature, 0, len(signatures)),
	}
	for _, d := range disposable {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		t.disposable[d] = struct{}{}
	}
	for _, s := range signatures {
		matches := make([]string, 0, len(s.Matches))
		for _, m := range s.Matches {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				matches = append(matches, m)
			}
		}
		t.signatures = append(t.signatures, Signature{Provider: s.Provider, Matches: matches})
	}
	return t
}

// Default returns the built-in table.
func Default() *Table {
	return New(defaultDisposableDomains, DefaultSignatures())
}

// IsDisposable is an exact match; subdomains of a listed domain do not match.
func (t *Table) IsDisposable(domain string) bool {
	_, ok := t.disposable[strings.ToLower(domain)]
	return ok
}

// DetectProvider fingerprints the mailbox provider from MX host names. It is
// informational only.
func (t *Table) DetectProvider(mxHostnames []string) types.Provider {
	joined := strings.ToLower(strings.Join(mxHostnames, " "))
	for _, s := range t.signatures {
		for _, m := range s.Matches {
			if strings.Contains(joined, m) {
				return s.Provider
			}
		}
	}
	return types.ProviderOther
}

// Len returns the number of disposable domains.
func (t *Table) Len() int {
	return len(t.disposable)
}

// DefaultSignatures returns gmail, outlook and yahoo signatures in priority order.
func DefaultSignatures() []Signature {
	return []Signature{
		{Provider: types.ProviderGmail, Matches: []string{"google.com", "googlemail.com"}},
		{Provider: types.ProviderOutlook, Matches: []string{
			"outlook.com", "microsoft.com", "hotmail.com", "live.com", ".protection.outlook.com",
		}},
		{Provider: types.ProviderYahoo, Matches: []string{"yahoodns.net", "yahoo.com"}},
	}
}

var defaultDisposableDomains = []string{
	"mailinator.com", "guerrillamail.com", "tempmail.com", "throwaway.email",
	"yopmail.com", "sharklasers.com", "guerrillamailblock.com", "grr.la",
	"guerrillamail.info", "guerrillamail.biz", "guerrillamail.de",
	"guerrillamail.net", "guerrillamail.org", "spam4.me", "trashmail.com",
	"trashmail.me", "trashmail.net", "trashmail.org", "bugmenot.com",
	"mailnesia.com", "maildrop.cc", "dispostable.com", "mailcatch.com",
	"mintemail.com", "tempr.email", "fakeinbox.com", "emailondeck.com",
	"getnada.com", "temp-mail.org", "tempail.com", "mohmal.com",
	"burnermail.io", "discard.email", "discardmail.com", "discardmail.de",
	"drdrb.net", "einrot.com", "emailgo.de", "mailfa.tk",
	"mailfree.ga", "mailfree.gq", "mailfree.ml", "mailfreeonline.com",
	"mailinator.net", "mailinator.org", "mailinator2.com",
	"mailnull.com", "mailsac.com", "mailtemp.info", "mailtothis.com",
	"mailtrash.net", "meltmail.com", "moakt.com", "mytemp.email",
	"mytempmail.com", "mytrashmail.com", "neverbox.com", "no-spam.ws",
	"nospammail.net", "nowmymail.com", "temp-mail.io", "tempmailo.com",
	"tmpmail.org", "tmpmail.net", "10minutemail.com", "trashmail.io",
	"wegwerfmail.de", "spamgourmet.com",
}
