package smtp

import (
	"regexp"
	"testing"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

func TestDefaultRules_Match(t *testing.T) {
	tests := []struct {
		text  string
		match bool
	}{
		{"5.7.1 Service unavailable; client host blocked", true},
		{"Your IP is on our BLACKLIST", true},
		{"listed at Spamhaus", true},
		{"barracuda reputation", true},
		{"relay access denied", true},
		{"message rejected as spam", true},
		{"5.7.26 unauthenticated mail", true},
		{"5.1.1 user unknown", false},
		{"mailbox full", false},
		{"", false},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		kind, ok := rules.Match(tt.text)
		if ok != tt.match {
			t.Errorf("Match(%q) = %v, want %v", tt.text, ok, tt.match)
			continue
		}
		if ok && kind != types.ErrIPBlocked {
			t.Errorf("Match(%q) kind = %q, want ip_blocked", tt.text, kind)
		}
	}
}

func TestRules_With(t *testing.T) {
	base := DefaultRules()
	extended := base.With(Rule{Pattern: regexp.MustCompile(`(?i)mailbox full`), Kind: types.ErrGreylisted})

	if len(base) != len(DefaultRules()) {
		t.Fatalf("With modified the receiver")
	}
	kind, ok := extended.Match("452 mailbox full")
	if !ok || kind != types.ErrGreylisted {
		t.Errorf("expected greylisted, got %q (%v)", kind, ok)
	}
	// earlier rules keep precedence
	kind, _ = extended.Match("mailbox full; sender blocked")
	if kind != types.ErrIPBlocked {
		t.Errorf("expected ip_blocked precedence, got %q", kind)
	}
}
