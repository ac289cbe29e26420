package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(c Cart, repo *memOrderRepo, codes order.CodeSource) *Pipeline {
	return NewPipeline(c, PipelineDeps{Orders: repo, Codes: codes}, PipelineConfig{
		CodeAttempts:  3,
		SubmitTimeout: time.Second,
	})
}

func TestPipeline_SubmitCOD(t *testing.T) {
	ctx := context.Background()
	c := &fakeCart{lines: sampleLines()}
	repo := newMemOrderRepo()
	events := &recordingPublisher{}
	p := NewPipeline(c, PipelineDeps{
		Orders: repo,
		Codes:  &sequenceCodes{codes: []order.PaymentReference{"482913"}},
		Events: events,
	}, PipelineConfig{})

	sub, err := p.Submit(ctx, SubmitCommand{Draft: draftFor(c.Lines(), "cod"), IdempotencyKey: "k1"})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, sub.State)
	assert.Equal(t, order.PaymentReference("482913"), sub.Code)
	assert.False(t, sub.Resumed)
	assert.True(t, c.isEmpty())

	state, last := p.State()
	assert.Equal(t, StateCompleted, state)
	require.NotNil(t, last)
	assert.Equal(t, sub.OrderID, last.OrderID)

	stored := repo.only()
	require.NotNil(t, stored)
	assert.Equal(t, order.StatusPending, stored.Status)
	assert.Equal(t, "cod_482913", stored.PaymentMethod)
	assert.Equal(t, int64(1350000), stored.Total.IntPart())
	assert.Equal(t, "k1", stored.IdempotencyKey)
	require.Len(t, stored.Items, 2)
	assert.Nil(t, stored.Items[0].ProductID)
	require.NotNil(t, stored.Items[1].ProductID)
	assert.Equal(t, catalogUUID, stored.Items[1].ProductID.String())
	assert.Equal(t, "DJI Mini 4 Pro", stored.Items[0].ProductName)
	assert.Equal(t, 2, stored.Items[0].Quantity)

	require.Len(t, events.events, 1)
	assert.Equal(t, order.EventTypeOrderPlaced, events.events[0].EventType())
}

func TestPipeline_SubmitPrepaidKeepsCart(t *testing.T) {
	for _, method := range []string{"bank", "momo"} {
		t.Run(method, func(t *testing.T) {
			c := &fakeCart{lines: sampleLines()}
			repo := newMemOrderRepo()
			p := newTestPipeline(c, repo, nil)

			sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(c.Lines(), method)})
			require.NoError(t, err)

			assert.Equal(t, StateAwaitingPayment, sub.State)
			assert.Zero(t, c.clears)
			assert.False(t, c.isEmpty())
			assert.Equal(t, order.StatusPending, repo.only().Status)
		})
	}
}

func TestPipeline_PersistenceFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *memOrderRepo)
		stage string
	}{
		{
			name:  "header insert fails",
			setup: func(r *memOrderRepo) { r.headerErr = errors.New("connection refused") },
			stage: "header",
		},
		{
			name:  "items insert fails",
			setup: func(r *memOrderRepo) { r.itemsErr = errors.New("deadlock detected") },
			stage: "items",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCart{lines: sampleLines()}
			repo := newMemOrderRepo()
			tt.setup(repo)
			p := newTestPipeline(c, repo, nil)

			sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(c.Lines(), "cod")})
			require.Error(t, err)
			assert.Nil(t, sub)
			assert.True(t, errors.Is(err, ErrSystemBusy))

			var derr *shared.DomainError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, "SYSTEM_BUSY", derr.Code)

			var serr *SubmissionError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.stage, serr.Stage)

			state, _ := p.State()
			assert.Equal(t, StateFailed, state)
			assert.Zero(t, repo.count(), "no orphaned header")
			assert.False(t, c.isEmpty())
		})
	}
}

func TestPipeline_RetryAfterFailure(t *testing.T) {
	c := &fakeCart{lines: sampleLines()}
	repo := newMemOrderRepo()
	repo.headerErr = errors.New("connection refused")
	p := newTestPipeline(c, repo, nil)
	draft := draftFor(c.Lines(), "cod")

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.Error(t, err)

	repo.mu.Lock()
	repo.headerErr = nil
	repo.mu.Unlock()

	sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sub.State)
	assert.Equal(t, 1, repo.count())
}

func TestPipeline_ConcurrentSubmitWritesOneHeader(t *testing.T) {
	c := &fakeCart{lines: sampleLines()}
	repo := newMemOrderRepo()
	repo.headerGate = make(chan struct{})
	repo.entered = make(chan struct{}, 1)
	p := newTestPipeline(c, repo, nil)
	draft := draftFor(c.Lines(), "cod")

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = p.Submit(context.Background(), SubmitCommand{Draft: draft})
	}()
	<-repo.entered

	state, _ := p.State()
	assert.True(t, state.IsBusy())

	var rejected int
	for i := 0; i < 5; i++ {
		_, err := p.Submit(context.Background(), SubmitCommand{Draft: draft})
		if errors.Is(err, ErrSubmissionInFlight) {
			rejected++
		}
	}
	close(repo.headerGate)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, 1, repo.headerInserts)
	assert.Equal(t, 1, repo.count())
}

func TestPipeline_RejectsSubmitUntilReset(t *testing.T) {
	c := &fakeCart{lines: sampleLines()}
	repo := newMemOrderRepo()
	p := newTestPipeline(c, repo, nil)
	draft := draftFor(sampleLines(), "cod")

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), SubmitCommand{Draft: draft})
	assert.True(t, errors.Is(err, ErrAlreadySubmitted))

	require.NoError(t, p.Reset())
	state, last := p.State()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, last)

	_, err = p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count())
}

func TestPipeline_IdempotencyKeyResumesPlacedOrder(t *testing.T) {
	repo := newMemOrderRepo()
	first := newTestPipeline(&fakeCart{lines: sampleLines()}, repo, nil)
	draft := draftFor(sampleLines(), "bank")

	placed, err := first.Submit(context.Background(), SubmitCommand{Draft: draft, IdempotencyKey: "retry-1"})
	require.NoError(t, err)

	// a fresh pipeline, as after a lost response and a page reload
	c := &fakeCart{lines: sampleLines()}
	second := newTestPipeline(c, repo, nil)
	resumed, err := second.Submit(context.Background(), SubmitCommand{Draft: draft, IdempotencyKey: "retry-1"})
	require.NoError(t, err)

	assert.True(t, resumed.Resumed)
	assert.Equal(t, placed.OrderID, resumed.OrderID)
	assert.Equal(t, placed.Code, resumed.Code)
	assert.Equal(t, StateAwaitingPayment, resumed.State)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, repo.headerInserts)
}

func TestPipeline_IdempotencyKeyReusedForOtherDraft(t *testing.T) {
	ctx := context.Background()
	repo := newMemOrderRepo()
	first := newTestPipeline(&fakeCart{lines: sampleLines()}, repo, nil)
	_, err := first.Submit(ctx, SubmitCommand{Draft: draftFor(sampleLines(), "cod"), IdempotencyKey: "k", Fingerprint: "fp-a"})
	require.NoError(t, err)

	other := sampleLines()[:1]
	c := &fakeCart{lines: other}
	second := newTestPipeline(c, repo, nil)
	_, err = second.Submit(ctx, SubmitCommand{Draft: draftFor(other, "cod"), IdempotencyKey: "k", Fingerprint: "fp-b"})
	assert.True(t, errors.Is(err, ErrIdempotencyKeyReused))

	state, last := second.State()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, last)
	assert.False(t, c.isEmpty(), "cart of the rejected submit is kept")
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, "fp-a", repo.only().DraftFingerprint)
}

func TestPipeline_PaymentCodeCollisionRetries(t *testing.T) {
	repo := newMemOrderRepo()
	repo.codesInUse["111111"] = true
	repo.codesInUse["222222"] = true
	codes := &sequenceCodes{codes: []order.PaymentReference{"111111", "222222", "333333"}}
	p := newTestPipeline(&fakeCart{lines: sampleLines()}, repo, codes)

	sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "bank")})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentReference("333333"), sub.Code)
}

func TestPipeline_PaymentCodeCollisionGivesUp(t *testing.T) {
	repo := newMemOrderRepo()
	repo.codesInUse["111111"] = true
	codes := &sequenceCodes{codes: []order.PaymentReference{"111111"}}
	p := newTestPipeline(&fakeCart{lines: sampleLines()}, repo, codes)

	sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "bank")})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentReference("111111"), sub.Code)
}

func TestPipeline_ClaimHeldElsewhere(t *testing.T) {
	claims := new(MockIdempotencyStore)
	claims.On("MarkProcessed", mock.Anything, "checkout:submit:k1", time.Minute).Return(false, nil)

	repo := newMemOrderRepo()
	p := NewPipeline(&fakeCart{lines: sampleLines()}, PipelineDeps{Orders: repo, Claims: claims}, PipelineConfig{})

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "cod"), IdempotencyKey: "k1"})
	assert.True(t, errors.Is(err, ErrSubmissionInFlight))

	state, _ := p.State()
	assert.Equal(t, StateIdle, state)
	assert.Zero(t, repo.count())
	claims.AssertExpectations(t)
}

func TestPipeline_ClaimReleasedOnFailure(t *testing.T) {
	claims := new(MockIdempotencyStore)
	claims.On("MarkProcessed", mock.Anything, "checkout:submit:k1", time.Minute).Return(true, nil)
	claims.On("Release", mock.Anything, "checkout:submit:k1").Return(nil)

	repo := newMemOrderRepo()
	repo.headerErr = errors.New("connection refused")
	p := NewPipeline(&fakeCart{lines: sampleLines()}, PipelineDeps{Orders: repo, Claims: claims}, PipelineConfig{})

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "cod"), IdempotencyKey: "k1"})
	require.Error(t, err)
	claims.AssertExpectations(t)
}

func TestPipeline_ClaimStoreDownDoesNotBlock(t *testing.T) {
	claims := new(MockIdempotencyStore)
	claims.On("MarkProcessed", mock.Anything, "checkout:submit:k1", time.Minute).Return(false, errors.New("redis: connection refused"))

	repo := newMemOrderRepo()
	p := NewPipeline(&fakeCart{lines: sampleLines()}, PipelineDeps{Orders: repo, Claims: claims}, PipelineConfig{})

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "cod"), IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count())
}

func TestPipeline_SubmitTimeout(t *testing.T) {
	repo := newMemOrderRepo()
	repo.headerGate = make(chan struct{})
	defer close(repo.headerGate)
	p := NewPipeline(&fakeCart{lines: sampleLines()}, PipelineDeps{Orders: repo}, PipelineConfig{
		SubmitTimeout: 20 * time.Millisecond,
	})

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "cod")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSystemBusy))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	state, _ := p.State()
	assert.Equal(t, StateFailed, state)
}

func TestPipeline_Metrics(t *testing.T) {
	metrics := new(MockMetrics)
	metrics.On("RecordSubmission", "cod", OutcomeCompleted).Once()
	metrics.On("RecordSubmission", "cod", OutcomeFailed).Once()

	repo := newMemOrderRepo()
	p := NewPipeline(&fakeCart{lines: sampleLines()}, PipelineDeps{Orders: repo, Metrics: metrics}, PipelineConfig{})
	draft := draftFor(sampleLines(), "cod")

	repo.headerErr = errors.New("boom")
	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.Error(t, err)

	repo.headerErr = nil
	_, err = p.Submit(context.Background(), SubmitCommand{Draft: draft})
	require.NoError(t, err)

	metrics.AssertExpectations(t)
}

func TestPipeline_CustomerRefIsStored(t *testing.T) {
	repo := newMemOrderRepo()
	p := newTestPipeline(&fakeCart{lines: sampleLines()}, repo, nil)
	userID := uuid.New()

	_, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(sampleLines(), "cod"), CustomerRef: &userID})
	require.NoError(t, err)

	stored := repo.only()
	require.NotNil(t, stored.CustomerRef)
	assert.Equal(t, userID, *stored.CustomerRef)
}

func TestSubmissionState_Transitions(t *testing.T) {
	tests := []struct {
		from, to SubmissionState
		want     bool
	}{
		{StateIdle, StateSubmitting, true},
		{StateFailed, StateSubmitting, true},
		{StateSubmitting, StateHeaderPersisted, true},
		{StateHeaderPersisted, StateItemsPersisted, true},
		{StateHeaderPersisted, StateCompleted, false},
		{StateItemsPersisted, StateAwaitingPayment, true},
		{StateAwaitingPayment, StateCompleted, true},
		{StateCompleted, StateSubmitting, false},
		{StateAwaitingPayment, StateSubmitting, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
