package verifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/dns"
	"github.com/cruxstack/email-reachability-go/internal/probe"
	"github.com/cruxstack/email-reachability-go/internal/reputation"
	"github.com/cruxstack/email-reachability-go/internal/smtp"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

// MxResolver looks up a domain's mail exchangers in priority order.
type MxResolver interface {
	ResolveMx(ctx context.Context, domain string) []types.MxHost
}

// HostProber runs SMTP probes across an ordered host list.
type HostProber interface {
	Probe(ctx context.Context, hosts []string, email string) types.SmtpOutcome
}

// Deps wires an Engine's collaborators.
type Deps struct {
	Resolver   MxResolver
	Reputation *reputation.Table
	Port       probe.PortChecker
	Mx         HostProber
	CatchAll   *CatchAll
}

// Engine runs the per-address verification pipeline.
type Engine struct {
	resolver   MxResolver
	reputation *reputation.Table
	port       probe.PortChecker
	mx         HostProber
	catchAll   *CatchAll
}

func NewEngine(d Deps) *Engine {
	rep := d.Reputation
	if rep == nil {
		rep = reputation.Default()
	}
	return &Engine{
		resolver:   d.Resolver,
		reputation: rep,
		port:       d.Port,
		mx:         d.Mx,
		catchAll:   d.CatchAll,
	}
}

// New builds an Engine that talks to real DNS and SMTP servers.
func New(cfg *config.Config, table *reputation.Table, port probe.PortChecker) *Engine {
	client := smtp.NewClient(cfg)
	return NewEngine(Deps{
		Resolver:   dns.NewResolver(nil, cfg.DNSTimeout),
		Reputation: table,
		Port:       port,
		Mx:         probe.NewMxProber(client, cfg.MaxMxHosts),
		CatchAll:   NewCatchAll(client),
	})
}

// Check verifies one address. It never fails; every problem is recorded in
// the returned result.
func (e *Engine) Check(ctx context.Context, raw string) types.VerificationResult {
	start := time.Now()
	email := types.NewEmailAddress(raw)

	res := types.VerificationResult{
		Email: email.String(),
		MX:    types.MxResult{Records: []string{}},
	}

	res.Syntax = CheckSyntax(email)
	if !res.Syntax.Valid {
		res.Reachable = types.Invalid
		slog.DebugContext(ctx, "invalid syntax", "email", res.Email)
		return res
	}

	domain := email.Domain()
	res.IsDisposable = e.reputation.IsDisposable(domain)

	hosts := types.Hostnames(e.resolver.ResolveMx(ctx, domain))
	res.MX = types.MxResult{Found: len(hosts) > 0, Records: hosts}
	slog.DebugContext(ctx, "mx lookup finished",
		"email", res.Email,
		"domain", domain,
		"found", res.MX.Found,
		"records", hosts,
	)
	if !res.MX.Found {
		res.Reachable = e.classify(res)
		return res
	}

	res.Provider = e.reputation.DetectProvider(hosts)

	if e.port != nil && e.port.Status(ctx) == types.PortBlocked {
		res.SMTP = types.Failed(types.ErrPort25Blocked)
		res.Reachable = e.classify(res)
		slog.DebugContext(ctx, "smtp port blocked, skipping probe", "email", res.Email, "reachable", res.Reachable)
		return res
	}

	res.SMTP = e.probeMx(ctx, hosts, email.String())

	if res.SMTP.Deliverable && res.SMTP.Error == types.ErrNone && e.catchAll != nil {
		res.IsCatchAll = e.catchAll.Detect(ctx, hosts[0], domain)
	}

	res.Reachable = e.classify(res)
	slog.DebugContext(ctx, "verification finished",
		"email", res.Email,
		"reachable", res.Reachable,
		"deliverable", res.SMTP.Deliverable,
		"code", res.SMTP.Code(),
		"error", res.SMTP.Error,
		"catch_all", res.IsCatchAll,
		"provider", res.Provider,
		"elapsed", time.Since(start).String(),
	)
	return res
}

func (e *Engine) probeMx(ctx context.Context, hosts []string, email string) (o types.SmtpOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "smtp probe panicked", "email", email, "panic", r)
			o = types.Failed(types.ErrConnectionFailed)
		}
	}()
	return e.mx.Probe(ctx, hosts, email)
}

func (e *Engine) classify(res types.VerificationResult) types.Reachability {
	return Classify(Signals{
		SyntaxValid:  res.Syntax.Valid,
		MxFound:      res.MX.Found,
		SMTP:         res.SMTP,
		IsCatchAll:   res.IsCatchAll,
		IsDisposable: res.IsDisposable,
	})
}
