package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/model"
)

// =====================================================
// MOCK M-PESA GATEWAY FOR TESTING
// =====================================================

type MockMpesaGateway struct {
	mu             sync.Mutex
	shouldFailPush bool
	pushRejectMsg  string
	queryResponses []*gateway.StkQueryResponse
	queryErr       error
	pushCalls      int
	queryCalls     int
}

func NewMockMpesaGateway() *MockMpesaGateway {
	return &MockMpesaGateway{}
}

func (m *MockMpesaGateway) STKPush(
	ctx context.Context,
	req gateway.StkPushRequest,
) (*gateway.StkPushResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushCalls++

	if m.shouldFailPush {
		if m.pushRejectMsg != "" {
			return nil, model.NewPushRejectedError(m.pushRejectMsg)
		}
		return nil, fmt.Errorf("mock push failed")
	}

	return &gateway.StkPushResponse{
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", time.Now().UnixNano()),
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

// QueryStatus replays the scripted responses in order, sticking on the
// last one once the script runs out. With no script it reports pending.
func (m *MockMpesaGateway) QueryStatus(
	ctx context.Context,
	checkoutRequestID string,
) (*gateway.StkQueryResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCalls++

	if m.queryErr != nil {
		return nil, m.queryErr
	}

	if len(m.queryResponses) == 0 {
		return &gateway.StkQueryResponse{Pending: true, ResultDesc: "The transaction is being processed"}, nil
	}

	idx := m.queryCalls - 1
	if idx >= len(m.queryResponses) {
		idx = len(m.queryResponses) - 1
	}
	return m.queryResponses[idx], nil
}

// SetFailPush sets whether push initiation should fail
func (m *MockMpesaGateway) SetFailPush(shouldFail bool, rejectMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailPush = shouldFail
	m.pushRejectMsg = rejectMsg
}

// ScriptQueryResponses sets the sequence of query answers
func (m *MockMpesaGateway) ScriptQueryResponses(responses ...*gateway.StkQueryResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResponses = responses
	m.queryCalls = 0
}

// SetQueryError makes every query fail with err
func (m *MockMpesaGateway) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}

func (m *MockMpesaGateway) PushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushCalls
}

func (m *MockMpesaGateway) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}
