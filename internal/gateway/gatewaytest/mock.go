// Package gatewaytest provides a testify mock of gateway.Gateway.
package gatewaytest

import (
	"context"

	"github.com/smallbiznis/invoicely/internal/gateway"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "paystack" }

func (m *MockGateway) InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.InitializeResponse), args.Error(1)
}

func (m *MockGateway) VerifyTransaction(ctx context.Context, reference string) (gateway.Transaction, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(gateway.Transaction), args.Error(1)
}

func (m *MockGateway) VerifySignature(payload []byte, signature string) error {
	args := m.Called(payload, signature)
	return args.Error(0)
}

func (m *MockGateway) ParseEvent(payload []byte) (gateway.Event, error) {
	args := m.Called(payload)
	return args.Get(0).(gateway.Event), args.Error(1)
}
