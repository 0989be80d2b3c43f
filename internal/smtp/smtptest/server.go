// Package smtptest provides a scripted in-process SMTP server for tests.
package smtptest

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

// Script controls how the server answers. Reply strings may hold several
// lines separated by "\r\n"; each is written verbatim with a trailing CRLF.
type Script struct {
	Banner        string // default "220 smtptest ESMTP"
	EhloReply     string // default "250-smtptest\r\n250-PIPELINING\r\n250 8BITMIME" (+STARTTLS when offered)
	OfferStartTLS bool
	StartTLSReply string // default "220 2.0.0 ready"
	TLSEhloReply  string // default "250-smtptest\r\n250 8BITMIME"
	MailReply     string // default "250 2.1.0 ok"
	// Rcpt returns the RCPT TO reply for a recipient; default "250 2.1.5 ok".
	Rcpt func(rcpt string) string
	// Silent accepts connections and never writes anything.
	Silent bool
	// DropAfter closes the connection right after this command verb (e.g. "MAIL").
	DropAfter string
	// BreakTLS writes garbage instead of performing the TLS handshake.
	BreakTLS bool
}

// Server is a scripted SMTP server listening on 127.0.0.1.
type Server struct {
	Addr   string
	script Script
	ln     net.Listener
	cert   tls.Certificate

	mu       sync.Mutex
	commands []string
	conns    int
	wg       sync.WaitGroup
	active   sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, script Script) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{Addr: ln.Addr().String(), script: script, ln: ln}
	if script.OfferStartTLS {
		s.cert = selfSignedCert(t)
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Port returns the listening port.
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.Addr)
	return port
}

// Commands returns every command line received, across connections.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Wait blocks until every accepted connection has been handled. The client
// may hang up before the server has read its last command.
func (s *Server) Wait() {
	s.active.Wait()
}

func (s *Server) Close() {
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		s.wg.Add(1)
		s.active.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.active.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	if s.script.Silent {
		_, _ = bufio.NewReader(conn).ReadString('\n')
		return
	}

	tp := textproto.NewConn(conn)
	secure := false
	write := func(reply string) bool {
		for _, l := range strings.Split(reply, "\r\n") {
			if err := tp.PrintfLine("%s", l); err != nil {
				return false
			}
		}
		return true
	}

	if !write(or(s.script.Banner, "220 smtptest ESMTP")) {
		return
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb := strings.ToUpper(strings.Fields(line + " ")[0])
		var reply string
		switch verb {
		case "EHLO", "HELO":
			if secure {
				reply = or(s.script.TLSEhloReply, "250-smtptest\r\n250 8BITMIME")
			} else {
				reply = or(s.script.EhloReply, "250-smtptest\r\n250-PIPELINING\r\n250 8BITMIME")
				if s.script.OfferStartTLS && s.script.EhloReply == "" {
					reply = "250-smtptest\r\n250-PIPELINING\r\n250-STARTTLS\r\n250 8BITMIME"
				}
			}
		case "STARTTLS":
			reply = or(s.script.StartTLSReply, "220 2.0.0 ready")
			if !write(reply) {
				return
			}
			if !strings.HasPrefix(reply, "220") {
				continue
			}
			if s.script.BreakTLS {
				_, _ = conn.Write([]byte("this is not a tls record\r\n"))
				return
			}
			tc := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{s.cert}})
			if err := tc.Handshake(); err != nil {
				return
			}
			tp = textproto.NewConn(tc)
			secure = true
			continue
		case "MAIL":
			reply = or(s.script.MailReply, "250 2.1.0 ok")
		case "RCPT":
			reply = "250 2.1.5 ok"
			if s.script.Rcpt != nil {
				reply = s.script.Rcpt(recipient(line))
			}
		case "QUIT":
			write("221 2.0.0 bye")
			return
		default:
			reply = "502 5.5.2 command not recognized"
		}

		if !write(reply) {
			return
		}
		if s.script.DropAfter != "" && strings.EqualFold(verb, s.script.DropAfter) {
			return
		}
	}
}

func recipient(line string) string {
	start := strings.IndexByte(line, '<')
	end := strings.LastIndexByte(line, '>')
	if start == -1 || end <= start {
		return ""
	}
	return line[start+1 : end]
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func selfSignedCert(t testing.TB) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "smtptest"},
		DNSNames:     []string{"localhost", "mx.smtptest.local"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}
