package probe

import (
	"context"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// PortChecker reports whether outbound SMTP connectivity exists at all.
// Implementations compute the answer once and serve it from cache afterwards.
type PortChecker interface {
	Status(ctx context.Context) types.PortReachability
}

// SessionProber runs one SMTP verification dialog against one host.
type SessionProber interface {
	Probe(ctx context.Context, host, email string) types.SmtpOutcome
}
