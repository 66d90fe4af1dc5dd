package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	notify "github.com/swust-xl/CampusPartner-sub001/internal/notify"
)

// Notifier is a mock type for the Notifier type
type Notifier struct {
	mock.Mock
}

// SendSingle provides a mock function with given fields: ctx, to, roomTag, vars
func (_m *Notifier) SendSingle(ctx context.Context, to string, roomTag string, vars map[string]string) error {
	ret := _m.Called(ctx, to, roomTag, vars)
	return ret.Error(0)
}

// SendBatch provides a mock function with given fields: ctx, roomTag, messages
func (_m *Notifier) SendBatch(ctx context.Context, roomTag string, messages []notify.Message) error {
	ret := _m.Called(ctx, roomTag, messages)
	return ret.Error(0)
}
