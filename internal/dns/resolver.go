package dns

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// MXLookuper is satisfied by *net.Resolver.
type MXLookuper interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Resolver resolves a domain's mail exchangers. Every failure collapses to an
// empty list.
type Resolver struct {
	lookup  MXLookuper
	timeout time.Duration
}

func NewResolver(lookup MXLookuper, timeout time.Duration) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	return &Resolver{lookup: lookup, timeout: timeout}
}

// ResolveMx returns MX hosts ordered by ascending priority. A null MX
// (a single "." exchange) yields no hosts.
func (r *Resolver) ResolveMx(ctx context.Context, domain string) []types.MxHost {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	records, err := r.lookup.LookupMX(ctx, domain)
	if err != nil {
		slog.DebugContext(ctx, "mx lookup failed", "domain", domain, "error", err)
		return []types.MxHost{}
	}

	hosts := make([]types.MxHost, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		name := strings.TrimSuffix(rec.Host, ".")
		if name == "" {
			continue
		}
		hosts = append(hosts, types.MxHost{Hostname: strings.ToLower(name), Priority: rec.Pref})
	}

	sort.SliceStable(hosts, func(i, j int) bool {
		return hosts[i].Priority < hosts[j].Priority
	})

	return hosts
}
