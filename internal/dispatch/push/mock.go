package push

import (
	"context"
	"sync"

	"ride-dispatch/internal/dispatch/domain"
)

// SentPush is one recorded call against the mock.
type SentPush struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Mock records every push instead of sending it. Set Err to force failures.
type Mock struct {
	mu   sync.Mutex
	Sent []SentPush
	Err  error
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) (domain.PushReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.PushReport{}, m.Err
	}
	m.Sent = append(m.Sent, SentPush{Tokens: tokens, Title: title, Body: body, Data: data})
	return domain.PushReport{SuccessCount: len(tokens)}, nil
}

func (m *Mock) Calls() []SentPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentPush, len(m.Sent))
	copy(out, m.Sent)
	return out
}
