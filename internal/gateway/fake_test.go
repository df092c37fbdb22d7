package gateway

import (
	"context"
	"sync"

	"github.com/Lllllllleong/imigraflow/internal/llm"
)

// fakeProvider replays scripted answers and records every request.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []llm.Request
}

func (f *fakeProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", llm.ErrEmptyResponse
}

func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
