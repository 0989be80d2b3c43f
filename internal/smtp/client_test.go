package smtp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxstack/email-reachability-go/internal/smtp/smtptest"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

func newTestClient(t *testing.T, srv *smtptest.Server) *Client {
	t.Helper()
	c := &Client{
		Helo:     "verifier.test",
		MailFrom: "verify@verifier.test",
		Timeout:  2 * time.Second,
		Grace:    time.Second,
		Rules:    DefaultRules(),
	}
	if srv != nil {
		port, err := strconv.Atoi(srv.Port())
		require.NoError(t, err)
		c.Port = port
	}
	return c
}

func TestClientProbe_Deliverable(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.True(t, o.Deliverable)
	assert.Equal(t, 250, o.Code())
	assert.Equal(t, types.ErrNone, o.Error)
	srv.Wait()
	assert.Equal(t, []string{
		"EHLO verifier.test",
		"MAIL FROM:<verify@verifier.test>",
		"RCPT TO:<alice@example.com>",
		"QUIT",
	}, srv.Commands())
}

func TestClientProbe_StartTLS(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{OfferStartTLS: true})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.True(t, o.Deliverable)
	assert.Equal(t, types.ErrNone, o.Error)
	srv.Wait()
	assert.Equal(t, []string{
		"EHLO verifier.test",
		"STARTTLS",
		"EHLO verifier.test",
		"MAIL FROM:<verify@verifier.test>",
		"RCPT TO:<alice@example.com>",
		"QUIT",
	}, srv.Commands())
}

func TestClientProbe_StartTLSRefusedFallsBackToPlaintext(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{
		OfferStartTLS: true,
		StartTLSReply: "454 4.7.0 TLS not available",
	})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.True(t, o.Deliverable)
	assert.Contains(t, srv.Commands(), "MAIL FROM:<verify@verifier.test>")
}

func TestClientProbe_BrokenHandshake(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{OfferStartTLS: true, BreakTLS: true})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.False(t, o.Deliverable)
	assert.Nil(t, o.ResponseCode)
	assert.Equal(t, types.ErrTLS, o.Error)
}

func TestClientProbe_RcptReplies(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		deliverable bool
		code        int
		kind        types.ErrorKind
	}{
		{"unknown user", "550 5.1.1 user unknown", false, 550, types.ErrNone},
		{"greylisted", "450 4.2.0 greylisted, come back later", false, 450, types.ErrGreylisted},
		{"blocked", "554 5.7.1 client host blocked", false, 554, types.ErrIPBlocked},
		{"multi-line block", "550-5.7.1 Our system has detected\r\n550 that this message is likely spam", false, 550, types.ErrIPBlocked},
		{"forward", "251 user not local", true, 251, types.ErrNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := smtptest.NewServer(t, smtptest.Script{
				Rcpt: func(string) string { return tt.reply },
			})
			c := newTestClient(t, srv)

			o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

			assert.Equal(t, tt.deliverable, o.Deliverable)
			assert.Equal(t, tt.code, o.Code())
			assert.Equal(t, tt.kind, o.Error)
		})
	}
}

func TestClientProbe_MultiLineBannerAndEhlo(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{
		Banner:    "220-mx.example.com ESMTP\r\n220-no UCE\r\n220 ready",
		EhloReply: "250-mx.example.com\r\n250-SIZE 1000\r\n250-ENHANCEDSTATUSCODES\r\n250 8BITMIME",
	})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.True(t, o.Deliverable)
	// one EHLO only: the continuation lines were not treated as replies
	ehlos := 0
	for _, cmd := range srv.Commands() {
		if strings.HasPrefix(cmd, "EHLO") {
			ehlos++
		}
	}
	assert.Equal(t, 1, ehlos)
}

func TestClientProbe_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		script smtptest.Script
		code   int
		kind   types.ErrorKind
	}{
		{"banner", smtptest.Script{Banner: "554 no service"}, 554, types.ErrBannerRejected},
		{"ehlo", smtptest.Script{EhloReply: "500 unrecognized"}, 500, types.ErrEhloRejected},
		{"tls ehlo", smtptest.Script{OfferStartTLS: true, TLSEhloReply: "503 bad sequence"}, 503, types.ErrEhloAfterTLSRejected},
		{"mail from", smtptest.Script{MailReply: "553 sender rejected"}, 553, types.ErrMailFromRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := smtptest.NewServer(t, tt.script)
			c := newTestClient(t, srv)

			o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

			assert.False(t, o.Deliverable)
			assert.Equal(t, tt.code, o.Code())
			assert.Equal(t, tt.kind, o.Error)
		})
	}
}

func TestClientProbe_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := newTestClient(t, nil)
	c.Port = port

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.Equal(t, types.ErrPort25Blocked, o.Error)
	assert.Nil(t, o.ResponseCode)
}

func TestClientProbe_SilentServerTimesOut(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{Silent: true})
	c := newTestClient(t, srv)
	c.Timeout = 200 * time.Millisecond
	c.Grace = 200 * time.Millisecond

	start := time.Now()
	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.Equal(t, types.ErrTimeout, o.Error)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientProbe_DroppedConnection(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{DropAfter: "MAIL"})
	c := newTestClient(t, srv)

	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.False(t, o.Deliverable)
	assert.True(t, o.Error.IsConnectivity(), "got %q", o.Error)
}

func TestClientProbe_OversizedBannerAborts(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.Script{
		Banner: "220 " + strings.Repeat("x", 4*maxReplyBytes),
	})
	c := newTestClient(t, srv)

	start := time.Now()
	o := c.Probe(context.Background(), "127.0.0.1", "alice@example.com")

	assert.False(t, o.Deliverable)
	assert.Nil(t, o.ResponseCode)
	assert.Equal(t, types.ErrConnectionFailed, o.Error)
	assert.Less(t, time.Since(start), c.Timeout)
	assert.Empty(t, srv.Commands())
}

// stuckConn ignores socket deadlines so only the hard deadline can end a read.
type stuckConn struct {
	net.Conn
}

func (stuckConn) SetDeadline(time.Time) error      { return nil }
func (stuckConn) SetReadDeadline(time.Time) error  { return nil }
func (stuckConn) SetWriteDeadline(time.Time) error { return nil }

func TestClientProbe_HardDeadline(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })

	c := newTestClient(t, nil)
	c.Timeout = 100 * time.Millisecond
	c.Grace = 100 * time.Millisecond
	c.Dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return stuckConn{client}, nil
	}

	done := make(chan types.SmtpOutcome, 1)
	go func() { done <- c.Probe(context.Background(), "mx.example.com", "alice@example.com") }()

	select {
	case o := <-done:
		assert.Equal(t, types.ErrTimeout, o.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not honour the hard deadline")
	}
}

func TestClientProbe_DialAddress(t *testing.T) {
	var got string
	c := newTestClient(t, nil)
	c.Dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		got = addr
		return nil, &net.OpError{Op: "dial", Err: context.DeadlineExceeded}
	}

	o := c.Probe(context.Background(), "mx.example.com", "alice@example.com")

	assert.Equal(t, "mx.example.com:25", got)
	assert.Equal(t, types.ErrTimeout, o.Error)
}
