package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"kairos/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	m.Run()
}

type MockPromoter struct {
	mock.Mock
}

func (m *MockPromoter) Accounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPromoter) PromoteDueTasks(ctx context.Context, accountID, date string) (int, error) {
	args := m.Called(ctx, accountID, date)
	return args.Int(0), args.Error(1)
}

func TestNewDueWorker_Invalid(t *testing.T) {
	_, err := NewDueWorker(&MockPromoter{}, "0 5 0 * * *", "Mars/Olympus")
	assert.Error(t, err)

	_, err = NewDueWorker(&MockPromoter{}, "every day", "UTC")
	assert.Error(t, err)
}

func TestDueWorker_CheckUsesWorkerTimezone(t *testing.T) {
	p := &MockPromoter{}
	w, err := NewDueWorker(p, "0 5 0 * * *", "Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC 14 марта это уже 15 марта в Токио
	w.now = func() time.Time { return time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC) }

	p.On("Accounts", mock.Anything).Return([]string{"a", "b", "c"}, nil)
	p.On("PromoteDueTasks", mock.Anything, "a", "2024-03-15").Return(2, nil)
	p.On("PromoteDueTasks", mock.Anything, "b", "2024-03-15").Return(0, errors.New("store down"))
	p.On("PromoteDueTasks", mock.Anything, "c", "2024-03-15").Return(1, nil)

	w.Check(context.Background())
	p.AssertExpectations(t)
}

func TestDueWorker_CheckAccountsError(t *testing.T) {
	p := &MockPromoter{}
	w, err := NewDueWorker(p, "0 5 0 * * *", "UTC")
	require.NoError(t, err)

	p.On("Accounts", mock.Anything).Return(nil, errors.New("store down"))

	w.Check(context.Background())
	p.AssertNotCalled(t, "PromoteDueTasks", mock.Anything, mock.Anything, mock.Anything)
}

func TestDueWorker_StartRunsSchedule(t *testing.T) {
	p := &MockPromoter{}
	w, err := NewDueWorker(p, "* * * * * *", "UTC")
	require.NoError(t, err)

	called := make(chan struct{}, 1)
	p.On("Accounts", mock.Anything).Return([]string{}, nil).Run(func(mock.Arguments) {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("расписание не сработало")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("воркер не остановился")
	}
}
