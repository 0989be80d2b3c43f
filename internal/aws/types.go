package aws

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const defaultClientKey = "127.0.0.1"

// ClientKey identifies the caller of a function URL or HTTP API request. A
// forwarded-for header wins over the source address of the TCP peer.
func ClientKey(req events.APIGatewayV2HTTPRequest) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, "x-forwarded-for") {
			if first, _, _ := strings.Cut(v, ","); strings.TrimSpace(first) != "" {
				return strings.TrimSpace(first)
			}
		}
	}
	if ip := req.RequestContext.HTTP.SourceIP; ip != "" {
		return ip
	}
	return defaultClientKey
}

// JSONResponse builds an HTTP API response with a JSON body.
func JSONResponse(status int, payload any, headers map[string]string) events.APIGatewayV2HTTPResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error"}`)
	}

	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    h,
		Body:       string(body),
	}
}

// RequestBody returns the request body, decoding it when the gateway
// base64-encoded it.
func RequestBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}
