// Package api exposes the batch check over HTTP and lambda events.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cruxstack/email-reachability-go/internal/checker"
	"github.com/cruxstack/email-reachability-go/internal/metrics"
	"github.com/cruxstack/email-reachability-go/internal/ratelimit"
)

const (
	msgEmptyBatch      = "Please provide an array of emails"
	msgInvalidJSON     = "Invalid JSON body"
	msgInternal        = "Internal server error"
	msgTooManyRequests = "Too many requests, please try again later."
)

// BatchChecker verifies a batch of addresses.
type BatchChecker interface {
	CheckEmails(ctx context.Context, emails []string) ([]checker.Item, error)
	BatchMax() int
}

type ErrorBody struct {
	Error string `json:"error"`
}

// Result is a transport-neutral response.
type Result struct {
	Status  int
	Body    any
	Headers map[string]string
}

// Service admits a caller and runs its batch. The HTTP router and the lambda
// handler both go through Handle.
type Service struct {
	checker BatchChecker
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
}

func NewService(c BatchChecker, l ratelimit.Limiter, m *metrics.Metrics) *Service {
	return &Service{checker: c, limiter: l, metrics: m}
}

func (s *Service) Handle(ctx context.Context, clientKey string, body []byte) Result {
	headers := map[string]string{}

	if s.limiter != nil {
		d, err := s.limiter.Admit(ctx, clientKey)
		if err != nil {
			// fail open
			slog.WarnContext(ctx, "rate limiter unavailable, admitting request", "client", clientKey, "error", err)
		} else {
			headers["X-RateLimit-Limit"] = strconv.Itoa(d.Limit)
			headers["X-RateLimit-Remaining"] = strconv.Itoa(d.Remaining)
			s.metrics.ObserveAdmission(d.Allowed)
			if !d.Allowed {
				slog.WarnContext(ctx, "rate limit exceeded", "client", clientKey)
				return Result{Status: http.StatusTooManyRequests, Body: ErrorBody{msgTooManyRequests}, Headers: headers}
			}
		}
	}

	emails, err := checker.ParseRequest(body)
	if err == nil {
		var items []checker.Item
		items, err = s.checker.CheckEmails(ctx, emails)
		if err == nil {
			return Result{Status: http.StatusOK, Body: checker.Response{Results: items}, Headers: headers}
		}
	}

	status, msg := s.errorResponse(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "batch check failed", "client", clientKey, "error", err)
	}
	return Result{Status: status, Body: ErrorBody{msg}, Headers: headers}
}

func (s *Service) errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, checker.ErrEmptyBatch):
		return http.StatusBadRequest, msgEmptyBatch
	case errors.Is(err, checker.ErrBatchTooLarge):
		return http.StatusBadRequest, fmt.Sprintf("Maximum %d emails per request", s.checker.BatchMax())
	case errors.Is(err, checker.ErrInvalidRequest):
		return http.StatusBadRequest, msgInvalidJSON
	}
	return http.StatusInternalServerError, msgInternal
}
