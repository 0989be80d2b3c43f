package probe

import (
	"context"
	"log/slog"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// DefaultMaxHosts is the number of MX hosts tried per address.
const DefaultMaxHosts = 3

// MxProber runs SMTP sessions against a domain's MX hosts in priority order,
// falling through to the next host when one is unreachable.
type MxProber struct {
	prober   SessionProber
	maxHosts int
}

func NewMxProber(prober SessionProber, maxHosts int) *MxProber {
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	return &MxProber{prober: prober, maxHosts: maxHosts}
}

// Probe returns the first authoritative outcome. Hosts must already be in
// ascending priority order.
func (m *MxProber) Probe(ctx context.Context, hosts []string, email string) types.SmtpOutcome {
	if len(hosts) > m.maxHosts {
		hosts = hosts[:m.maxHosts]
	}

	for _, host := range hosts {
		o := m.prober.Probe(ctx, host, email)

		if o.Deliverable {
			return o
		}
		if o.ResponseCode != nil && *o.ResponseCode >= 500 {
			return o
		}

		if o.Error.IsConnectivity() {
			slog.InfoContext(ctx, "mx host unreachable, trying next",
				"host", host,
				"email", email,
				"error", o.Error,
			)
			continue
		}

		if o.ResponseCode != nil {
			return o
		}

		// uncoded failures other than connectivity (tls_error, connection_failed)
		// are not authoritative either
		slog.DebugContext(ctx, "mx host gave no answer, trying next",
			"host", host,
			"email", email,
			"error", o.Error,
		)
	}

	return types.Failed(types.ErrAllMxFailed)
}
