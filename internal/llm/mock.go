package llm

import (
	"context"

	"buddybot/internal/domain"
)

// MockClient permite tests sin un endpoint real. Guarda la última
// secuencia recibida y, si Block no es nil, espera a que lo cierren antes
// de responder.
type MockClient struct {
	Response string
	Err      error
	Block    chan struct{}

	LastMessages []domain.Message
	Calls        int
}

func (m *MockClient) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	m.Calls++
	m.LastMessages = messages
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.Response, m.Err
}
