package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeRouting implements routing.Service with canned per-mode behaviour and
// counts every call.
type fakeRouting struct {
	mu sync.Mutex

	transitMinutes int
	transitErr     error
	drivingMinutes int
	drivingErr     error

	transitCalls int
	drivingCalls int
}

func (f *fakeRouting) TransitMinutes(_ context.Context, _, _ string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitCalls++
	return f.transitMinutes, f.transitErr
}

func (f *fakeRouting) DrivingMinutes(_ context.Context, _, _ string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drivingCalls++
	return f.drivingMinutes, f.drivingErr
}

// fakeChat implements llm.Chat, returning queued responses in order and the
// final one forever after. When fail is set every call errors.
type fakeChat struct {
	mu        sync.Mutex
	responses []string
	fail      bool
	calls     int
}

func (f *fakeChat) Complete(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("fake chat failure")
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}
