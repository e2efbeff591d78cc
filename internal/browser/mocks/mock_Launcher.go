package mocks

import (
	"context"

	browser "github.com/sells-group/portfolio-cli/internal/browser"
	mock "github.com/stretchr/testify/mock"
)

// MockLauncher is a mock type for the Launcher interface.
type MockLauncher struct {
	mock.Mock
}

// Open provides a mock function with given fields: ctx
func (_m *MockLauncher) Open(ctx context.Context) (browser.Page, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Open")
	}

	var r0 browser.Page
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (browser.Page, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) browser.Page); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(browser.Page)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockLauncher creates a new instance of MockLauncher.
func NewMockLauncher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLauncher {
	mock := &MockLauncher{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
