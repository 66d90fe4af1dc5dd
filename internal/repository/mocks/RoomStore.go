package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	domain "github.com/swust-xl/CampusPartner-sub001/internal/domain"
	query "github.com/swust-xl/CampusPartner-sub001/internal/query"
)

// RoomStore is a mock type for the RoomStore type
type RoomStore struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, room
func (_m *RoomStore) Save(ctx context.Context, room *domain.Room) error {
	ret := _m.Called(ctx, room)
	return ret.Error(0)
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *RoomStore) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	ret := _m.Called(ctx, id)
	var r0 *domain.Room
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Room); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Room)
	}
	return r0, ret.Error(1)
}

// Query provides a mock function with given fields: ctx, q
func (_m *RoomStore) Query(ctx context.Context, q query.RoomQuery) ([]domain.Room, error) {
	ret := _m.Called(ctx, q)
	var r0 []domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Room)
	}
	return r0, ret.Error(1)
}

// Search provides a mock function with given fields: ctx, keyword, page
func (_m *RoomStore) Search(ctx context.Context, keyword string, page query.Page) ([]domain.Room, error) {
	ret := _m.Called(ctx, keyword, page)
	var r0 []domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Room)
	}
	return r0, ret.Error(1)
}
