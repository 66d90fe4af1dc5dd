package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
)

// UserDirectory is a mock type for the UserDirectory type
type UserDirectory struct {
	mock.Mock
}

// FindContacts provides a mock function with given fields: ctx, openIDs
func (_m *UserDirectory) FindContacts(ctx context.Context, openIDs []string) (map[string]string, error) {
	ret := _m.Called(ctx, openIDs)
	var r0 map[string]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[string]string)
	}
	return r0, ret.Error(1)
}
