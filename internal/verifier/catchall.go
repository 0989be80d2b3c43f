package verifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cruxstack/email-reachability-go/internal/probe"
)

const catchAllPrefix = "xq9z7k2m4p"

// CatchAll detects domains that accept mail for any local part by probing an
// address that cannot plausibly exist.
type CatchAll struct {
	prober   probe.SessionProber
	newLocal func() string
}

func NewCatchAll(prober probe.SessionProber) *CatchAll {
	return &CatchAll{prober: prober, newLocal: randomLocalPart}
}

func randomLocalPart() string {
	return catchAllPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Detect reports whether host accepts a fabricated recipient on domain. Every
// failure yields false.
func (c *CatchAll) Detect(ctx context.Context, host, domain string) (catchAll bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "catch-all probe panicked", "host", host, "domain", domain, "panic", r)
			catchAll = false
		}
	}()

	fake := c.newLocal() + "@" + domain
	o := c.prober.Probe(ctx, host, fake)

	slog.DebugContext(ctx, "catch-all probe finished",
		"host", host,
		"domain", domain,
		"deliverable", o.Deliverable,
		"error", o.Error,
	)
	return o.Deliverable
}
