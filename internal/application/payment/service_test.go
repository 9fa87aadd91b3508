package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/memstore"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Put(ctx context.Context, a *domain.PaymentAccount) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAccountStore) ListByUser(ctx context.Context, userID string) ([]domain.PaymentAccount, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.PaymentAccount), args.Error(1)
}
func (m *mockAccountStore) Revoke(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

// stubTokenServer plays the processor's token endpoint for Exchange calls.
func stubTokenServer(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer"}`, accessToken)
	}))
}

type fixture struct {
	svc      Service
	accounts *mockAccountStore
	states   *memstore.CodeStore
	now      *time.Time
}

func newFixture(t *testing.T, tokenURL string) *fixture {
	t.Helper()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		accounts: &mockAccountStore{},
		states:   memstore.New(),
		now:      &now,
	}
	f.svc = NewService(ServiceDeps{
		Accounts: f.accounts,
		States:   f.states,
		Configs: processor.Configs{
			domain.ProcessorMercadoPago: &oauth2.Config{
				ClientID: "client1",
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://auth.mercadopago.com/authorization",
					TokenURL: tokenURL,
				},
			},
		},
		Now: func() time.Time { return *f.now },
	})
	return f
}

// connectState runs ConnectURL and extracts the state parameter the
// processor would echo back on the callback.
func (f *fixture) connectState(t *testing.T, userID string) string {
	t.Helper()
	authURL, err := f.svc.ConnectURL(context.Background(), domain.ProcessorMercadoPago, userID)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestProcessorAccountID_MercadoPago(t *testing.T) {
	tok := &oauth2.Token{AccessToken: "APP_USR-123456789-100523-abcdef0123456789-987654"}
	assert.Equal(t, "123456789", processorAccountID(domain.ProcessorMercadoPago, tok))
}

func TestProcessorAccountID_MercadoPago_Malformed(t *testing.T) {
	tok := &oauth2.Token{AccessToken: "garbage"}
	assert.Equal(t, "", processorAccountID(domain.ProcessorMercadoPago, tok))
}

func TestProcessorAccountID_Stripe(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "sk_live_x"}).WithExtra(map[string]interface{}{
		"stripe_user_id": "acct_1ABC",
	})
	assert.Equal(t, "acct_1ABC", processorAccountID(domain.ProcessorStripe, tok))
}

func TestProcessorAccountID_UnknownProcessor(t *testing.T) {
	assert.Equal(t, "", processorAccountID("paypal", &oauth2.Token{AccessToken: "x"}))
}

func TestConnectURL_UnknownProcessor(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.ConnectURL(context.Background(), "paypal", "u1")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestConnectURL_StateIsRandomPerConnect(t *testing.T) {
	f := newFixture(t, "")

	state := f.connectState(t, "u1")
	require.True(t, strings.HasPrefix(state, "u1."), "state should be keyed by user: %q", state)
	assert.Len(t, strings.TrimPrefix(state, "u1."), 64)

	again := f.connectState(t, "u1")
	assert.NotEqual(t, state, again)
}

func TestHandleCallback_RoundTrip(t *testing.T) {
	srv := stubTokenServer(t, "APP_USR-123456789-100523-abcdef-987654")
	defer srv.Close()
	f := newFixture(t, srv.URL)
	f.accounts.On("Put", mock.Anything, mock.MatchedBy(func(a *domain.PaymentAccount) bool {
		return a.UserID == "u1" && a.Processor == domain.ProcessorMercadoPago &&
			a.ProcessorAccountID == "123456789" && a.Status == "active"
	})).Return(nil)

	state := f.connectState(t, "u1")
	acc, err := f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, state, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.UserID)
	f.accounts.AssertExpectations(t)
}

func TestHandleCallback_StateIsSingleUse(t *testing.T) {
	srv := stubTokenServer(t, "APP_USR-123456789-100523-abcdef-987654")
	defer srv.Close()
	f := newFixture(t, srv.URL)
	f.accounts.On("Put", mock.Anything, mock.Anything).Return(nil)

	state := f.connectState(t, "u1")
	_, err := f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, state, "auth-code")
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, state, "auth-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.accounts.AssertNumberOfCalls(t, "Put", 1)
}

// A callback naming another user must not link anything to that user: the
// state token is verified against the stored hash, so guessing the user id
// is not enough.
func TestHandleCallback_ForgedState(t *testing.T) {
	srv := stubTokenServer(t, "APP_USR-123456789-100523-abcdef-987654")
	defer srv.Close()
	f := newFixture(t, srv.URL)

	// No pending connect for the victim at all.
	_, err := f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, "victim-user-id.deadbeef", "attacker-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Victim has a pending connect but the attacker does not know its token.
	f.connectState(t, "victim-user-id")
	_, err = f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, "victim-user-id.deadbeef", "attacker-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.accounts.AssertNotCalled(t, "Put")
}

func TestHandleCallback_MalformedState(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, "no-separator", "auth-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestHandleCallback_ExpiredState(t *testing.T) {
	f := newFixture(t, "")

	state := f.connectState(t, "u1")
	*f.now = f.now.Add(stateTTL + time.Second)

	_, err := f.svc.HandleCallback(context.Background(), domain.ProcessorMercadoPago, state, "auth-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// The stale entry is gone; a second attempt fails the lookup, not expiry.
	_, err = f.states.Get(context.Background(), "u1", stateAddress(domain.ProcessorMercadoPago))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDisconnect_RevokesOwnedAccount(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("ListByUser", mock.Anything, "u1").Return([]domain.PaymentAccount{
		{AccountID: "acc1", UserID: "u1", Processor: domain.ProcessorStripe},
	}, nil)
	accounts.On("Revoke", mock.Anything, "acc1").Return(nil)
	svc := NewService(ServiceDeps{Accounts: accounts})

	require.NoError(t, svc.Disconnect(context.Background(), "u1", "acc1"))
	accounts.AssertExpectations(t)
}

func TestDisconnect_RejectsForeignAccount(t *testing.T) {
	accounts := &mockAccountStore{}
	accounts.On("ListByUser", mock.Anything, "u1").Return([]domain.PaymentAccount{}, nil)
	svc := NewService(ServiceDeps{Accounts: accounts})

	err := svc.Disconnect(context.Background(), "u1", "acc-of-someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	accounts.AssertNotCalled(t, "Revoke")
}
