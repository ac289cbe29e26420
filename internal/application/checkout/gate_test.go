package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/payment"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFlow records pipeline callbacks
type fakeFlow struct {
	completed int
	released  int
}

func (f *fakeFlow) CompletePayment() error {
	f.completed++
	return nil
}

func (f *fakeFlow) ReleasePayment() error {
	f.released++
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func testRecipient() payment.Recipient {
	return payment.Recipient{
		StorePrefix:   "KIENDRONE",
		BankCode:      "MB",
		BankAccount:   "0394300132",
		AccountName:   "KIEN DRONE",
		WalletAccount: "0394300132",
	}
}

func bankSubmission() *Submission {
	return &Submission{
		OrderID: uuid.New(),
		Code:    "482913",
		Method:  domaincheckout.PaymentBank,
		Total:   valueobject.VNDFromInt(1350000),
		State:   StateAwaitingPayment,
	}
}

func openGate(t *testing.T, window time.Duration, clock *fakeClock) (*Gate, *fakeCart, *fakeFlow) {
	t.Helper()
	c := &fakeCart{lines: sampleLines()}
	flow := &fakeFlow{}
	g := NewGate(c, flow, window, WithClock(clock.Now))
	_, err := g.Open(bankSubmission(), testRecipient())
	require.NoError(t, err)
	return g, c, flow
}

func TestGate_Open(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	g := NewGate(&fakeCart{}, &fakeFlow{}, 30*time.Minute, WithClock(clock.Now))
	assert.Equal(t, GateIdle, g.State())

	in, err := g.Open(bankSubmission(), testRecipient())
	require.NoError(t, err)

	assert.Equal(t, GateQRDisplayed, g.State())
	assert.Equal(t, "KIENDRONE-482913", in.Memo)
	assert.Equal(t, int64(1350000), in.Amount.IntPart())
	assert.Contains(t, in.QRPayload, "amount=1350000")
	assert.Equal(t, clock.now.Add(30*time.Minute), g.ExpiresAt())

	_, err = g.Open(bankSubmission(), testRecipient())
	assert.True(t, errors.Is(err, ErrNoPendingPayment))
}

func TestGate_OpenRejectsCOD(t *testing.T) {
	g := NewGate(&fakeCart{}, &fakeFlow{}, 0)
	sub := bankSubmission()
	sub.Method = domaincheckout.PaymentCOD

	_, err := g.Open(sub, testRecipient())
	require.Error(t, err)
	assert.Equal(t, GateIdle, g.State())
}

func TestGate_Confirm(t *testing.T) {
	g, c, flow := openGate(t, 30*time.Minute, &fakeClock{now: time.Now()})

	require.NoError(t, g.Confirm(context.Background()))

	assert.Equal(t, GateConfirmedLocally, g.State())
	assert.True(t, c.isEmpty())
	assert.Equal(t, 1, flow.completed)

	err := g.Confirm(context.Background())
	assert.True(t, errors.Is(err, ErrNoPendingPayment))
	assert.Equal(t, 1, flow.completed)
}

func TestGate_Abandon(t *testing.T) {
	g, c, flow := openGate(t, 30*time.Minute, &fakeClock{now: time.Now()})

	require.NoError(t, g.Abandon(context.Background()))

	assert.Equal(t, GateAbandoned, g.State())
	assert.False(t, g.Expired())
	assert.False(t, c.isEmpty(), "cart is kept for a retry")
	assert.Zero(t, c.clears)
	assert.Equal(t, 1, flow.released)

	assert.True(t, errors.Is(g.Confirm(context.Background()), ErrNoPendingPayment))
	_, err := g.Instructions()
	assert.True(t, errors.Is(err, ErrNoPendingPayment))
}

func TestGate_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	g, c, flow := openGate(t, 30*time.Minute, clock)

	clock.now = clock.now.Add(29 * time.Minute)
	_, err := g.Instructions()
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	assert.Equal(t, GateAbandoned, g.State())
	assert.True(t, g.Expired())
	assert.Equal(t, 1, flow.released)
	assert.False(t, c.isEmpty())

	assert.True(t, errors.Is(g.Confirm(context.Background()), ErrNoPendingPayment))
}

func TestGate_ZeroWindowNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	g, _, _ := openGate(t, 0, clock)

	clock.now = clock.now.Add(72 * time.Hour)
	assert.Equal(t, GateQRDisplayed, g.State())
	assert.True(t, g.ExpiresAt().IsZero())
}

func TestGate_ConfirmCompletesPipeline(t *testing.T) {
	c := &fakeCart{lines: sampleLines()}
	repo := newMemOrderRepo()
	p := newTestPipeline(c, repo, nil)

	sub, err := p.Submit(context.Background(), SubmitCommand{Draft: draftFor(c.Lines(), "bank")})
	require.NoError(t, err)

	g := NewGate(c, p, time.Minute)
	_, err = g.Open(sub, testRecipient())
	require.NoError(t, err)
	require.NoError(t, g.Confirm(context.Background()))

	state, _ := p.State()
	assert.Equal(t, StateCompleted, state)
	assert.True(t, c.isEmpty())
	assert.Equal(t, "pending", repo.only().Status.String())
}
