package conversation

import (
	"context"
	"sync"
)

// mockService is a TextService and ImageService for tests. When Gate is
// non-nil each call blocks until a value is received from it.
type mockService struct {
	Reply string
	Err   error
	Gate  chan struct{}
	// OnCall runs at the start of each call when set.
	OnCall func(ctx context.Context, input string)

	mu     sync.Mutex
	calls  int
	inputs []string
}

var (
	_ TextService  = (*mockService)(nil)
	_ ImageService = (*mockService)(nil)
)

func (m *mockService) Generate(ctx context.Context, input string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, input)
	onCall := m.OnCall
	m.mu.Unlock()

	if onCall != nil {
		onCall(ctx, input)
	}
	if m.Gate != nil {
		<-m.Gate
	}
	return m.Reply, m.Err
}

func (m *mockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockService) LastInput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return ""
	}
	return m.inputs[len(m.inputs)-1]
}
