package responder

import (
	"context"
	"sync"
)

// MockAdapter returns a canned supportive reply. It backs tests and keyless
// local runs.
type MockAdapter struct {
	mu      sync.Mutex
	replies []string
	next    int
	err     error
	calls   int
}

const defaultMockReply = "Thank you for sharing that with me. I'm here to listen whenever you need to talk."

func NewMockAdapter(replies ...string) *MockAdapter {
	if len(replies) == 0 {
		replies = []string{defaultMockReply}
	}
	return &MockAdapter{replies: replies}
}

// Fail makes every subsequent Reply return err; nil restores normal replies.
func (a *MockAdapter) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) Reply(_ context.Context, _ Request) (Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return Response{}, a.err
	}
	reply := a.replies[a.next%len(a.replies)]
	a.next++
	return Response{Text: reply}, nil
}
