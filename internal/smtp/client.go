package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

// DialFunc opens the plaintext transport to an MX host.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client runs one verification dialog per Probe call.
type Client struct {
	Helo     string
	MailFrom string
	Port     int
	// Timeout bounds every connect, handshake, read and write.
	Timeout time.Duration
	// Grace is added to Timeout to form the hard deadline of a whole session.
	Grace     time.Duration
	Rules     Rules
	Dial      DialFunc
	TLSConfig *tls.Config
}

func NewClient(cfg *config.Config) *Client {
	d := &net.Dialer{}
	return &Client{
		Helo:     cfg.EhloHostname,
		MailFrom: cfg.MailFrom,
		Port:     cfg.SMTPPort,
		Timeout:  cfg.SMTPTimeout,
		Grace:    cfg.SMTPGrace,
		Rules:    DefaultRules(),
		Dial:     d.DialContext,
	}
}

// Probe asks host whether it would accept mail for email. It never returns an
// error; transport and protocol failures are folded into the outcome.
func (c *Client) Probe(ctx context.Context, host, email string) types.SmtpOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout+c.Grace)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, c.Timeout)
	raw, err := c.dial(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(c.port())))
	dialCancel()
	if err != nil {
		kind := ErrorKindOf(err)
		slog.DebugContext(ctx, "smtp connect failed", "host", host, "email", email, "kind", kind, "error", err)
		return types.Failed(kind)
	}

	s := &session{
		host:    host,
		raw:     raw,
		conn:    raw,
		text:    textproto.NewConn(raw),
		timeout: c.Timeout,
		tlsCfg:  c.tlsConfig(host),
		dialog: Dialog{
			Helo:     c.Helo,
			MailFrom: c.MailFrom,
			Rcpt:     email,
			Rules:    c.rules(),
		},
	}

	done := make(chan types.SmtpOutcome, 1)
	go func() { done <- s.run(ctx) }()

	select {
	case o := <-done:
		raw.Close()
		return o
	case <-ctx.Done():
		raw.Close()
		slog.DebugContext(ctx, "smtp hard deadline reached", "host", host, "email", email)
		return types.Failed(types.ErrTimeout)
	}
}

func (c *Client) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if c.Dial != nil {
		return c.Dial(ctx, network, addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

func (c *Client) port() int {
	if c.Port == 0 {
		return 25
	}
	return c.Port
}

func (c *Client) rules() Rules {
	if c.Rules == nil {
		return DefaultRules()
	}
	return c.Rules
}

func (c *Client) tlsConfig(host string) *tls.Config {
	var cfg *tls.Config
	if c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	} else {
		// opportunistic: the peer certificate is not validated
		cfg = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.ServerName == "" && net.ParseIP(host) == nil {
		cfg.ServerName = host
	}
	return cfg
}

// session owns one transport. raw is the plaintext socket and is the only
// field touched outside the run goroutine (Close is safe concurrently); conn
// and text switch to the TLS transport after STARTTLS.
type session struct {
	host    string
	raw     net.Conn
	conn    net.Conn
	text    *textproto.Conn
	secure  bool
	timeout time.Duration
	tlsCfg  *tls.Config
	dialog  Dialog
}

func (s *session) run(ctx context.Context) types.SmtpOutcome {
	state := StateConnected
	for {
		_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
		reply, err := ReadReply(&s.text.Reader)
		if err != nil {
			return s.fail(ctx, state, err)
		}

		step := Transition(state, reply, s.dialog)
		slog.DebugContext(ctx, "smtp reply",
			"host", s.host,
			"email", s.dialog.Rcpt,
			"state", state.String(),
			"code", reply.Code,
		)

		if step.UpgradeTLS {
			if err := s.upgrade(ctx); err != nil {
				slog.DebugContext(ctx, "smtp tls handshake failed", "host", s.host, "error", err)
				return types.Failed(types.ErrTLS)
			}
		}

		if step.Send != "" {
			if err := s.write(step.Send); err != nil {
				if step.Outcome != nil {
					return *step.Outcome
				}
				return s.fail(ctx, state, err)
			}
		}

		if step.Outcome != nil {
			return *step.Outcome
		}
		state = step.Next
	}
}

func (s *session) write(line string) error {
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	return s.text.PrintfLine("%s", line)
}

// upgrade performs the TLS handshake in place over the plaintext socket. Any
// bytes buffered by the plaintext reader are discarded with it.
func (s *session) upgrade(ctx context.Context) error {
	_ = s.raw.SetDeadline(time.Now().Add(s.timeout))
	tc := tls.Client(s.raw, s.tlsCfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return err
	}
	s.conn = tc
	s.text = textproto.NewConn(tc)
	s.secure = true
	return nil
}

func (s *session) fail(ctx context.Context, state State, err error) types.SmtpOutcome {
	kind := ErrorKindOf(err)
	if s.secure && kind == types.ErrConnectionFailed {
		kind = types.ErrTLS
	}
	slog.DebugContext(ctx, "smtp session failed",
		"host", s.host,
		"email", s.dialog.Rcpt,
		"state", state.String(),
		"kind", kind,
		"error", err,
	)
	return types.Failed(kind)
}
