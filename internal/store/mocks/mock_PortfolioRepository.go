package mocks

import (
	"context"
	"time"

	model "github.com/sells-group/portfolio-cli/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockPortfolioRepository is a mock type for the PortfolioRepository interface.
type MockPortfolioRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, p
func (_m *MockPortfolioRepository) Save(ctx context.Context, p *model.Portfolio) error {
	ret := _m.Called(ctx, p)

	if len(ret) == 0 {
		panic("no return value specified for Save")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Portfolio) error); ok {
		r0 = rf(ctx, p)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// FindLatest provides a mock function with given fields: ctx
func (_m *MockPortfolioRepository) FindLatest(ctx context.Context) (*model.Portfolio, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for FindLatest")
	}

	var r0 *model.Portfolio
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*model.Portfolio, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) *model.Portfolio); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Portfolio)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FindByDate provides a mock function with given fields: ctx, at
func (_m *MockPortfolioRepository) FindByDate(ctx context.Context, at time.Time) (*model.Portfolio, error) {
	ret := _m.Called(ctx, at)

	if len(ret) == 0 {
		panic("no return value specified for FindByDate")
	}

	var r0 *model.Portfolio
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (*model.Portfolio, error)); ok {
		return rf(ctx, at)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) *model.Portfolio); ok {
		r0 = rf(ctx, at)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Portfolio)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, at)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FindByDateRange provides a mock function with given fields: ctx, from, to
func (_m *MockPortfolioRepository) FindByDateRange(ctx context.Context, from time.Time, to time.Time) ([]*model.Portfolio, error) {
	ret := _m.Called(ctx, from, to)

	if len(ret) == 0 {
		panic("no return value specified for FindByDateRange")
	}

	var r0 []*model.Portfolio
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time, time.Time) ([]*model.Portfolio, error)); ok {
		return rf(ctx, from, to)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time, time.Time) []*model.Portfolio); ok {
		r0 = rf(ctx, from, to)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*model.Portfolio)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time, time.Time) error); ok {
		r1 = rf(ctx, from, to)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockPortfolioRepository) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockPortfolioRepository) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockPortfolioRepository creates a new instance of MockPortfolioRepository.
func NewMockPortfolioRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPortfolioRepository {
	mock := &MockPortfolioRepository{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
