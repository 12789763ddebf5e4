package supervisor_test

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/lambda-feedback/respawn/internal/execution/worker"
)

type mockWorker struct {
	mock.Mock
}

func newMockWorker(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockWorker {
	m := &mockWorker{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockWorker) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockWorker) Signal(sig os.Signal) error {
	args := m.Called(sig)
	return args.Error(0)
}

func (m *mockWorker) Wait(ctx context.Context) (worker.ExitEvent, error) {
	args := m.Called(ctx)
	return args.Get(0).(worker.ExitEvent), args.Error(1)
}

func (m *mockWorker) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *mockWorker) Alive() bool {
	args := m.Called()

	if fn, ok := args.Get(0).(func() bool); ok {
		return fn()
	}

	return args.Bool(0)
}

func (m *mockWorker) Pid() int {
	args := m.Called()
	return args.Int(0)
}

type mockTree struct {
	mock.Mock
}

func newMockTree(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockTree {
	m := &mockTree{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockTree) Children(pid int) ([]int, error) {
	args := m.Called(pid)

	children, _ := args.Get(0).([]int)
	return children, args.Error(1)
}

func (m *mockTree) Kill(pid int) error {
	args := m.Called(pid)
	return args.Error(0)
}
