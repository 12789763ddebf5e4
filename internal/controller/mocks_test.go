package controller_test

import (
	"context"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lambda-feedback/respawn/internal/execution/supervisor"
	"github.com/lambda-feedback/respawn/internal/watch"
)

type mockSupervisor struct {
	mock.Mock
}

func newMockSupervisor(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockSupervisor {
	m := &mockSupervisor{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockSupervisor) Start(ctx context.Context) (*supervisor.WorkerProcess, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*supervisor.WorkerProcess)
	return p, args.Error(1)
}

func (m *mockSupervisor) IsAlive(p *supervisor.WorkerProcess) bool {
	args := m.Called(p)
	return args.Bool(0)
}

func (m *mockSupervisor) Stop(ctx context.Context, p *supervisor.WorkerProcess, sig os.Signal) error {
	args := m.Called(ctx, p, sig)
	return args.Error(0)
}

func (m *mockSupervisor) KillDescendants(p *supervisor.WorkerProcess) {
	m.Called(p)
}

func (m *mockSupervisor) Current() *supervisor.WorkerProcess {
	args := m.Called()
	p, _ := args.Get(0).(*supervisor.WorkerProcess)
	return p
}

// is matches exactly the given worker process, not an equal one.
func is(p *supervisor.WorkerProcess) any {
	return mock.MatchedBy(func(actual *supervisor.WorkerProcess) bool {
		return actual == p
	})
}

// fakeSubscriber delivers preloaded events first and then everything
// passed to send, until the subscription is cancelled.
type fakeSubscriber struct {
	err       error
	preloaded []watch.Event

	mu    sync.Mutex
	paths []string
	out   chan watch.Event
}

func newFakeSubscriber(preloaded ...watch.Event) *fakeSubscriber {
	return &fakeSubscriber{preloaded: preloaded}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, paths []string) (<-chan watch.Event, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make(chan watch.Event, len(f.preloaded)+16)
	for _, evt := range f.preloaded {
		out <- evt
	}

	f.mu.Lock()
	f.paths = paths
	f.out = out
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.out == out {
			close(out)
			f.out = nil
		}
	}()

	return out, nil
}

func (f *fakeSubscriber) subscribedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.paths
}

// send delivers an event unless the subscription is closed.
func (f *fakeSubscriber) send(evt watch.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.out == nil {
		return false
	}

	f.out <- evt
	return true
}

// close ends the subscription as if the watcher failed.
func (f *fakeSubscriber) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.out != nil {
		close(f.out)
		f.out = nil
	}
}

type fakeSignals struct {
	mu      sync.Mutex
	ch      chan<- os.Signal
	sigs    []os.Signal
	stopped bool
}

func (f *fakeSignals) Notify(c chan<- os.Signal, sig ...os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ch = c
	f.sigs = sig
}

func (f *fakeSignals) Stop(c chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
}

func (f *fakeSignals) send(sig os.Signal) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	ch <- sig
}

func (f *fakeSignals) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stopped
}
