package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/ratelimit"
	"whatsapp-gateway/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient scripts provider responses: errs are consumed first, then every
// call succeeds with the canned id.
type fakeClient struct {
	mu    sync.Mutex
	calls int
	errs  []error
	id    string
	reads []string
}

func (f *fakeClient) next() (ports.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return ports.SendResult{}, err
	}
	return ports.SendResult{ProviderID: f.id}, nil
}

func (f *fakeClient) SendText(_ context.Context, _, _, _ string) (ports.SendResult, error) {
	return f.next()
}

func (f *fakeClient) SendTemplate(_ context.Context, _, _, _ string, _ []ports.TemplateComponent) (ports.SendResult, error) {
	return f.next()
}

func (f *fakeClient) MarkAsRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reads = append(f.reads, id)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sentStore struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (s *sentStore) StoreIncomingMessage(context.Context, domain.Message) error { return nil }

func (s *sentStore) StoreSentMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *sentStore) UpdateMessageStatus(context.Context, string, domain.Status, time.Time) error {
	return nil
}

type fixture struct {
	client  *fakeClient
	store   *sentStore
	brk     *breaker.Breaker
	monitor *health.Monitor
	d       *Dispatcher
}

// options tuned so reliability behaviour is observable without real waits.
type fixtureOpts struct {
	limiterMax       int
	breakerThreshold int
	maxRetries       int
	credentials      bool
}

func newFixture(opts fixtureOpts) *fixture {
	client := &fakeClient{id: "wamid.sent.1"}
	store := &sentStore{}
	brk := breaker.New(opts.breakerThreshold, time.Minute, discard())
	monitor := health.NewMonitor()
	d := NewDispatcher(
		client,
		store,
		ratelimit.NewLimiter(opts.limiterMax, time.Minute),
		brk,
		retry.NewManager(opts.maxRetries, time.Millisecond, discard()),
		monitor,
		discard(),
		"15559999",
		opts.credentials,
		time.Second,
	)
	return &fixture{client: client, store: store, brk: brk, monitor: monitor, d: d}
}

func defaults() fixtureOpts {
	return fixtureOpts{limiterMax: 10, breakerThreshold: 5, maxRetries: 2, credentials: true}
}

func TestSendTextSuccess(t *testing.T) {
	f := newFixture(defaults())

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")

	assert.True(t, res.Success)
	assert.NoError(t, res.Err)
	assert.Equal(t, "wamid.sent.1", res.MessageID)
	assert.Equal(t, 1, f.client.callCount())

	require.Len(t, f.store.sent, 1)
	stored := f.store.sent[0]
	assert.Equal(t, "wamid.sent.1", stored.ProviderID)
	assert.Equal(t, domain.StatusSent, stored.Status)
	assert.Equal(t, "+15550001", stored.To)
	assert.Equal(t, int64(1), f.monitor.Status().MessagesSent)
}

func TestSendTextValidation(t *testing.T) {
	f := newFixture(defaults())

	res := f.d.SendText(context.Background(), "", "hello", "")
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrValidation, domain.KindOf(res.Err))

	res = f.d.SendText(context.Background(), "+15550001", "", "")
	assert.Equal(t, domain.ErrValidation, domain.KindOf(res.Err))

	assert.Zero(t, f.client.callCount(), "invalid requests must not reach the provider")
	assert.Equal(t, int64(2), f.monitor.Status().Errors)
}

func TestSendTextMissingCredentials(t *testing.T) {
	opts := defaults()
	opts.credentials = false
	f := newFixture(opts)

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrAuthentication, domain.KindOf(res.Err))
	assert.Zero(t, f.client.callCount())
}

func TestSendTextRetriesTransientFailure(t *testing.T) {
	f := newFixture(defaults())
	f.client.errs = []error{domain.NewProviderError("temporarily down", nil)}

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")

	assert.True(t, res.Success)
	assert.Equal(t, "wamid.sent.1", res.MessageID)
	assert.Equal(t, 2, f.client.callCount(), "one failure then one successful retry")
}

func TestSendTextRateLimitsPerRecipient(t *testing.T) {
	opts := defaults()
	opts.limiterMax = 2
	f := newFixture(opts)

	for i := 0; i < 2; i++ {
		res := f.d.SendText(context.Background(), "+15550001", "hello", "")
		require.True(t, res.Success)
	}

	res := f.d.SendText(context.Background(), "+15550001", "one too many", "")
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrRateLimit, domain.KindOf(res.Err))
	assert.Equal(t, 2, f.client.callCount(), "the limited send must not reach the provider")

	// A different recipient still goes through.
	res = f.d.SendText(context.Background(), "+15550002", "hello", "")
	assert.True(t, res.Success)
}

func TestSendTextOpenCircuitShortCircuits(t *testing.T) {
	opts := defaults()
	opts.breakerThreshold = 2
	opts.maxRetries = 1
	f := newFixture(opts)
	f.client.errs = []error{
		domain.NewProviderError("down", nil),
		domain.NewProviderError("down", nil),
	}

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")
	require.False(t, res.Success)
	require.Equal(t, 2, f.client.callCount(), "two attempts trip the breaker")
	require.Equal(t, breaker.StateOpen, f.brk.State())

	res = f.d.SendText(context.Background(), "+15550002", "hello", "")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, breaker.ErrOpen)
	assert.Equal(t, 2, f.client.callCount(), "an open circuit must not invoke the provider")
}

func TestSendTemplateSuccess(t *testing.T) {
	f := newFixture(defaults())

	res := f.d.SendTemplate(context.Background(), "+15550001", "order_update", "en", nil)

	assert.True(t, res.Success)
	require.Len(t, f.store.sent, 1)
	assert.Equal(t, domain.KindTemplate, f.store.sent[0].Kind)
	assert.Equal(t, "order_update", f.store.sent[0].Body)
}

func TestSendTemplateValidation(t *testing.T) {
	f := newFixture(defaults())

	res := f.d.SendTemplate(context.Background(), "+15550001", "", "en", nil)
	assert.Equal(t, domain.ErrValidation, domain.KindOf(res.Err))
	assert.Zero(t, f.client.callCount())
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture(defaults())

	err := f.d.MarkAsRead(context.Background(), "wamid.inbound.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"wamid.inbound.1"}, f.client.reads)
}

func TestMarkAsReadValidation(t *testing.T) {
	f := newFixture(defaults())

	err := f.d.MarkAsRead(context.Background(), "")
	assert.Equal(t, domain.ErrValidation, domain.KindOf(err))
	assert.Zero(t, f.client.callCount())
}

func TestMarkAsReadSkipsRecipientLimiter(t *testing.T) {
	opts := defaults()
	opts.limiterMax = 1
	f := newFixture(opts)

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")
	require.True(t, res.Success)

	// Further sends to this recipient are limited, but read receipts are not.
	for i := 0; i < 3; i++ {
		require.NoError(t, f.d.MarkAsRead(context.Background(), "wamid.inbound.1"))
	}
	assert.Len(t, f.client.reads, 3)
}

func TestSendFailureCountsError(t *testing.T) {
	opts := defaults()
	opts.maxRetries = 0
	f := newFixture(opts)
	f.client.errs = []error{domain.NewProviderAPIError("invalid recipient", 131026, 0)}

	res := f.d.SendText(context.Background(), "+15550001", "hello", "")

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrProviderAPI, domain.KindOf(res.Err))
	assert.Empty(t, f.store.sent, "failed sends must not be persisted as sent")
	assert.Equal(t, int64(1), f.monitor.Status().Errors)
}
