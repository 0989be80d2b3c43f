package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"

	"github.com/cruxstack/email-reachability-go/internal/api"
	"github.com/cruxstack/email-reachability-go/internal/aws"
	"github.com/cruxstack/email-reachability-go/internal/checker"
	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/ratelimit"
)

var (
	cfg *config.Config
	svc *api.Service
)

func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if cfg.DebugMode {
		evtJson, err := json.Marshal(req)
		if err != nil {
			slog.ErrorContext(ctx, "issue marshalling event", "error", err)
		}
		slog.DebugContext(ctx, "lambda event", "event", string(evtJson))
	}

	body, err := aws.RequestBody(req)
	if err != nil {
		return aws.JSONResponse(http.StatusBadRequest, api.ErrorBody{Error: "Invalid JSON body"}, nil), nil
	}

	res := svc.Handle(ctx, aws.ClientKey(req), body)
	return aws.JSONResponse(res.Status, res.Body, res.Headers), nil
}

func main() {
	var err error
	cfg, err = config.New()
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	cfg.InstallLogger()

	svc, err = newService(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to init service", "error", err)
	}

	lambda.Start(Handler)
}

// newService wires the batch service and starts its background work. Metrics
// are only exported by cmd/server, so none are collected here.
func newService(ctx context.Context, cfg *config.Config) (*api.Service, error) {
	c, err := checker.NewChecker(ctx, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init checker: %w", err)
	}
	c.Start(ctx)

	limiter, err := ratelimit.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init rate limiter: %w", err)
	}
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		go mem.Run(ctx, cfg.RateLimitSweep)
	}

	return api.NewService(c, limiter, nil), nil
}
