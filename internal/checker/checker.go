package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cruxstack/email-reachability-go/internal/aws"
	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/metrics"
	"github.com/cruxstack/email-reachability-go/internal/policy"
	"github.com/cruxstack/email-reachability-go/internal/probe"
	"github.com/cruxstack/email-reachability-go/internal/reputation"
	"github.com/cruxstack/email-reachability-go/internal/types"
	"github.com/cruxstack/email-reachability-go/internal/verifier"
)

// DefaultBatchMax is the per-request address ceiling.
const DefaultBatchMax = 100

var validate = validator.New()

// Verifier checks one address.
type Verifier interface {
	Check(ctx context.Context, raw string) types.VerificationResult
}

type Options struct {
	Policy   *policy.Evaluator
	Metrics  *metrics.Metrics
	Port     *probe.PortProbe
	BatchMax int
}

// Checker verifies batches of addresses concurrently.
type Checker struct {
	engine   Verifier
	policy   *policy.Evaluator
	metrics  *metrics.Metrics
	port     *probe.PortProbe
	batchMax int
}

func New(engine Verifier, opts Options) *Checker {
	limit := opts.BatchMax
	if limit <= 0 {
		limit = DefaultBatchMax
	}
	return &Checker{
		engine:   engine,
		policy:   opts.Policy,
		metrics:  opts.Metrics,
		port:     opts.Port,
		batchMax: limit,
	}
}

// NewChecker wires the full pipeline from configuration.
func NewChecker(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Checker, error) {
	table, err := loadReputation(ctx, cfg.DisposableDomainsPath)
	if err != nil {
		return nil, err
	}

	eval, err := policy.NewEvaluator(ctx, cfg.VerdictPolicyPath, cfg.VerdictPolicyQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load verdict policy: %w", err)
	}

	port := probe.NewPortProbe(cfg)
	engine := verifier.New(cfg, table, port)

	return New(engine, Options{
		Policy:   eval,
		Metrics:  m,
		Port:     port,
		BatchMax: cfg.BatchMax,
	}), nil
}

func loadReputation(ctx context.Context, path string) (*reputation.Table, error) {
	if path == "" {
		return reputation.Default(), nil
	}

	var fetcher reputation.ObjectFetcher
	if strings.HasPrefix(path, "s3://") {
		client, err := aws.NewAWSClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create aws client: %w", err)
		}
		fetcher = client.S3
	}

	table, err := reputation.Load(ctx, path, fetcher)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "loaded disposable domain table", "path", path, "domains", table.Len())
	return table, nil
}

// Start kicks off the port reachability diagnostic in the background.
func (c *Checker) Start(ctx context.Context) {
	if c.port != nil {
		c.port.Start(ctx)
	}
}

// PortStatus returns the cached port diagnostic without probing.
func (c *Checker) PortStatus() types.PortReachability {
	if c.port == nil {
		return types.PortUnknown
	}
	return c.port.Cached()
}

func (c *Checker) BatchMax() int {
	return c.batchMax
}

// Validate rejects an empty or oversized batch before any work is done.
func (c *Checker) Validate(emails []string) error {
	err := validate.Var(emails, fmt.Sprintf("required,min=1,max=%d", c.batchMax))
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return fmt.Errorf("%w: got %d, max %d", ErrBatchTooLarge, len(emails), c.batchMax)
	}
	return ErrEmptyBatch
}

// CheckEmails verifies every address concurrently and returns the results in
// input order. Only batch validation fails the call.
func (c *Checker) CheckEmails(ctx context.Context, emails []string) ([]Item, error) {
	if err := c.Validate(emails); err != nil {
		return nil, err
	}

	start := time.Now()
	items := make([]Item, len(emails))

	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			items[i] = c.checkOne(ctx, email)
		}(i, email)
	}
	wg.Wait()

	slog.InfoContext(ctx, "batch verified",
		"count", len(emails),
		"elapsed", time.Since(start).String(),
	)
	return items, nil
}

func (c *Checker) checkOne(ctx context.Context, email string) (item Item) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "address verification panicked", "email", email, "panic", r)
			item = Item{VerificationResult: failedResult(email)}
		}
		c.metrics.ObserveResult(item.VerificationResult, time.Since(start))
	}()

	res := c.engine.Check(ctx, email)
	item = Item{VerificationResult: res}

	d, err := c.policy.Decide(ctx, res)
	if err != nil {
		slog.WarnContext(ctx, "verdict policy failed", "email", res.Email, "error", err)
	}
	item.Policy = d

	return item
}

func failedResult(email string) types.VerificationResult {
	addr := types.NewEmailAddress(email)
	return types.VerificationResult{
		Email:     addr.String(),
		Reachable: types.Unknown,
		Syntax:    verifier.CheckSyntax(addr),
		MX:        types.MxResult{Records: []string{}},
		SMTP:      types.Failed(types.ErrConnectionFailed),
	}
}
