package smtp

import (
	"regexp"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// Rule maps a reply-text signature to an error kind.
type Rule struct {
	Pattern *regexp.Regexp
	Kind    types.ErrorKind
}

// Rules is evaluated in order against RCPT reply text; the first match wins.
type Rules []Rule

// DefaultRules recognise IP or policy blocks, which say nothing about the mailbox.
func DefaultRules() Rules {
	return Rules{
		{Pattern: regexp.MustCompile(`5\.7\.\d`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)blocked`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)blacklist`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)spamhaus`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)barracuda`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)denied`), Kind: types.ErrIPBlocked},
		{Pattern: regexp.MustCompile(`(?i)reject`), Kind: types.ErrIPBlocked},
	}
}

// Match returns the kind of the first rule matching text.
func (rs Rules) Match(text string) (types.ErrorKind, bool) {
	for _, r := range rs {
		if r.Pattern.MatchString(text) {
			return r.Kind, true
		}
	}
	return types.ErrNone, false
}

// With returns a copy with extra rules appended after the existing ones.
func (rs Rules) With(extra ...Rule) Rules {
	out := make(Rules, 0, len(rs)+len(extra))
	out = append(out, rs...)
	return append(out, extra...)
}
