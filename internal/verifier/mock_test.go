package verifier

import (
	"context"
	"sync"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

type mockResolver struct {
	hosts map[string][]types.MxHost
}

func (m *mockResolver) ResolveMx(ctx context.Context, domain string) []types.MxHost {
	if h, ok := m.hosts[domain]; ok {
		return h
	}
	return []types.MxHost{}
}

type mockPort struct {
	status types.PortReachability
	calls  int
	mu     sync.Mutex
}

func (m *mockPort) Status(ctx context.Context) types.PortReachability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.status
}

// mockSession answers by recipient; unknown recipients get a 550
type mockSession struct {
	replies map[string]types.SmtpOutcome
	// fallback answers any recipient not in replies, e.g. the catch-all probe
	fallback *types.SmtpOutcome
	panics   bool

	mu    sync.Mutex
	calls []string
}

func (m *mockSession) Probe(ctx context.Context, host, email string) types.SmtpOutcome {
	m.mu.Lock()
	m.calls = append(m.calls, host+" "+email)
	m.mu.Unlock()

	if m.panics {
		panic("boom")
	}
	if o, ok := m.replies[email]; ok {
		return o
	}
	if m.fallback != nil {
		return *m.fallback
	}
	return types.Coded(false, 550, types.ErrNone)
}

func (m *mockSession) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
