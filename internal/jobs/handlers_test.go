package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"menupay/internal/models"
	"menupay/internal/services/settlement"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) RunSchedule(ctx context.Context, businessID, processorID uint) (*settlement.RunResult, error) {
	args := m.Called(ctx, businessID, processorID)
	result, _ := args.Get(0).(*settlement.RunResult)
	return result, args.Error(1)
}

func (m *MockSettler) DueSchedules(ctx context.Context) ([]settlement.Pair, error) {
	args := m.Called(ctx)
	pairs, _ := args.Get(0).([]settlement.Pair)
	return pairs, args.Error(1)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func runTask(t *testing.T, businessID, processorID uint) *asynq.Task {
	t.Helper()
	task, err := NewSettlementRunTask(SettlementRunPayload{BusinessID: businessID, ProcessorID: processorID}, time.Minute)
	require.NoError(t, err)
	return task
}

func TestHandleSettlementRun(t *testing.T) {
	tests := []struct {
		name      string
		result    *settlement.RunResult
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{"payout created", &settlement.RunResult{Payout: &models.Payout{PublicID: "po"}}, nil, false, false},
		{"skipped", &settlement.RunResult{SkipReason: settlement.SkipBelowThreshold}, nil, false, false},
		{"locked is not a failure", nil, models.ErrScheduleLocked, false, false},
		{"unknown processor never retries", nil, models.ErrProcessorNotFound, true, true},
		{"database error retries", nil, errors.New("connection reset"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := &MockSettler{}
			settler.On("RunSchedule", mock.Anything, uint(1), uint(2)).Return(tt.result, tt.err)
			h := NewHandlers(settler, &MockEnqueuer{}, time.Minute)

			err := h.HandleSettlementRun(context.Background(), runTask(t, 1, 2))
			if !tt.wantErr {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			}
			settler.AssertExpectations(t)
		})
	}
}

func TestHandleSettlementRun_BadPayload(t *testing.T) {
	h := NewHandlers(&MockSettler{}, &MockEnqueuer{}, time.Minute)
	err := h.HandleSettlementRun(context.Background(), asynq.NewTask(TypeSettlementRun, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleSettlementSweep(t *testing.T) {
	settler := &MockSettler{}
	settler.On("DueSchedules", mock.Anything).Return([]settlement.Pair{
		{BusinessID: 1, ProcessorID: 10},
		{BusinessID: 2, ProcessorID: 20},
	}, nil)

	enqueuer := &MockEnqueuer{}
	forPair := func(b, p uint) interface{} {
		return mock.MatchedBy(func(task *asynq.Task) bool {
			var payload SettlementRunPayload
			return task.Type() == TypeSettlementRun &&
				json.Unmarshal(task.Payload(), &payload) == nil &&
				payload.BusinessID == b && payload.ProcessorID == p
		})
	}
	enqueuer.On("EnqueueContext", mock.Anything, forPair(1, 10)).Return(&asynq.TaskInfo{ID: "t1"}, nil).Once()
	enqueuer.On("EnqueueContext", mock.Anything, forPair(2, 20)).Return(nil, asynq.ErrDuplicateTask).Once()

	h := NewHandlers(settler, enqueuer, time.Minute)
	require.NoError(t, h.HandleSettlementSweep(context.Background(), NewSettlementSweepTask()))
	enqueuer.AssertExpectations(t)
}

func TestHandleSettlementSweep_EnqueueFailure(t *testing.T) {
	settler := &MockSettler{}
	settler.On("DueSchedules", mock.Anything).Return([]settlement.Pair{{BusinessID: 1, ProcessorID: 10}}, nil)
	enqueuer := &MockEnqueuer{}
	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	h := NewHandlers(settler, enqueuer, time.Minute)
	assert.Error(t, h.HandleSettlementSweep(context.Background(), NewSettlementSweepTask()))
}
