package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxstack/email-reachability-go/internal/config"
)

func setupHandler(t *testing.T) {
	t.Helper()
	t.Setenv("APP_EHLO_HOSTNAME", "verifier.test")
	t.Setenv("APP_PORT_PROBE_DISABLED", "true")

	var err error
	cfg, err = config.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, err = newService(ctx, cfg)
	require.NoError(t, err)
}

func TestHandler_InvalidAddress(t *testing.T) {
	setupHandler(t)

	resp, err := Handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Body: `{"emails":["not-an-email"]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"reachable":"invalid"`)
	assert.Equal(t, "99", resp.Headers["X-RateLimit-Remaining"])
}

func TestHandler_Base64Body(t *testing.T) {
	setupHandler(t)

	resp, err := Handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"emails":[]}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Please provide an array of emails"}`, resp.Body)

	resp, err = Handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewService_RegistersNoCollectors(t *testing.T) {
	setupHandler(t)

	_, err := Handler(context.Background(), events.APIGatewayV2HTTPRequest{
		Body: `{"emails":["not-an-email"]}`,
	})
	require.NoError(t, err)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.False(t, strings.HasPrefix(f.GetName(), "email_reachability_"), "unexpected collector %s", f.GetName())
	}
}
