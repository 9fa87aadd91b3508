package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetVerifiedByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSMSSender struct {
	mock.Mock
	mu       sync.Mutex
	lastCode string
}

func (m *mockSMSSender) SendSMS(ctx context.Context, to, msg string) error {
	m.mu.Lock()
	// The code is the only digit run in the message body.
	m.lastCode = extractDigits(msg)
	m.mu.Unlock()
	return m.Called(ctx, to, msg).Error(0)
}

func (m *mockSMSSender) LastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode
}

type mockMailer struct {
	mock.Mock
	lastCode string
}

func (m *mockMailer) SendEmail(to, subject, body string) error {
	m.lastCode = extractDigits(body)
	return m.Called(to, subject, body).Error(0)
}

func extractDigits(s string) string {
	out := []rune{}
	for _, r := range s {
		if r >= '0' && r <= '9' && len(out) < 6 {
			out = append(out, r)
		}
	}
	return string(out)
}

// --- fixture ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

const (
	testUserID = "u1"
	testPhone  = "+573001234567"
	testEmail  = "a@b.com"
)

type fixture struct {
	svc   Service
	store *memstore.CodeStore
	users *mockUserStore
	sms   *mockSMSSender
	mail  *mockMailer
	clock *fakeClock
}

func newFixture(t *testing.T, silentConflict bool) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		users: &mockUserStore{},
		sms:   &mockSMSSender{},
		mail:  &mockMailer{},
		clock: &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	f.svc = NewService(ServiceDeps{
		Store:          f.store,
		Users:          f.users,
		SMS:            f.sms,
		Mailer:         f.mail,
		CodeTTL:        5 * time.Minute,
		ResendCooldown: 60 * time.Second,
		SilentConflict: silentConflict,
		Now:            f.clock.Now,
	})
	return f
}

func (f *fixture) ownerUser() *domain.User {
	phone := testPhone
	return &domain.User{UserID: testUserID, Email: testEmail, Phone: &phone}
}

func (f *fixture) expectOwner() {
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)
	f.users.On("GetVerifiedByPhone", mock.Anything, testPhone).Return(nil, domain.ErrNotFound)
}

// --- Issue ---

func TestIssue_SMS_HappyPath(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	require.NoError(t, err)

	v, err := f.store.Get(context.Background(), testUserID, testPhone)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelSMS, v.Channel)
	assert.Equal(t, int64(300), v.ExpiresAt-v.IssuedAt)
	assert.True(t, strings.HasPrefix(v.CodeHash, "$2"), "stored code must be a bcrypt hash")
	assert.NotEqual(t, f.sms.LastCode(), v.CodeHash, "plaintext code must not be stored")
	f.sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestIssue_AddressNotOnAccount(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, "+10000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_UnknownUser(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	err := f.svc.Issue(context.Background(), "ghost", domain.ChannelSMS, testPhone)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIssue_PhoneVerifiedElsewhere_Silent(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)
	f.users.On("GetVerifiedByPhone", mock.Anything, testPhone).
		Return(&domain.User{UserID: "u2", PhoneConfirmed: true}, nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	require.NoError(t, err, "conflict must look like success to the caller")

	_, err = f.store.Get(context.Background(), testUserID, testPhone)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "no entry may be stored on conflict")
	f.sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_PhoneVerifiedElsewhere_Surfaced(t *testing.T) {
	f := newFixture(t, false)
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)
	f.users.On("GetVerifiedByPhone", mock.Anything, testPhone).
		Return(&domain.User{UserID: "u2", PhoneConfirmed: true}, nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestIssue_SelfVerifiedPhone_NoConflict(t *testing.T) {
	f := newFixture(t, true)
	u := f.ownerUser()
	u.PhoneConfirmed = true
	f.users.On("Get", mock.Anything, testUserID).Return(u, nil)
	f.users.On("GetVerifiedByPhone", mock.Anything, testPhone).Return(u, nil)
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	assert.NoError(t, err)
}

func TestIssue_CooldownRejectsImmediateResend(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone))

	f.clock.Advance(30 * time.Second)
	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTooSoon))
	f.sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestIssue_ResendAfterCooldown_InvalidatesOldCode(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone))
	firstCode := f.sms.LastCode()

	f.clock.Advance(61 * time.Second)
	require.NoError(t, f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone))
	secondCode := f.sms.LastCode()

	if firstCode == secondCode {
		t.Skip("generator produced identical codes, cannot distinguish entries")
	}

	err := f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, firstCode)
	assert.True(t, errors.Is(err, domain.ErrMismatch), "old code must no longer verify")

	f.users.On("Update", mock.Anything, testUserID, mock.Anything).Return(nil)
	assert.NoError(t, f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, secondCode))
}

func TestIssue_DeliveryFailure_RollsBack(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(errors.New("gateway down"))

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailed))

	_, err = f.store.Get(context.Background(), testUserID, testPhone)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "failed issuance must leave no pending entry")
}

func TestIssue_Email_HappyPath(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)
	f.mail.On("SendEmail", testEmail, mock.Anything, mock.Anything).Return(nil)

	err := f.svc.Issue(context.Background(), testUserID, domain.ChannelEmail, testEmail)
	require.NoError(t, err)

	v, err := f.store.Get(context.Background(), testUserID, testEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, v.Channel)
}

// --- Verify ---

func issueSMS(t *testing.T, f *fixture) string {
	t.Helper()
	f.sms.On("SendSMS", mock.Anything, testPhone, mock.Anything).Return(nil)
	require.NoError(t, f.svc.Issue(context.Background(), testUserID, domain.ChannelSMS, testPhone))
	return f.sms.LastCode()
}

func TestVerify_CorrectCode_MarksConfirmedAndConsumes(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	code := issueSMS(t, f)

	f.users.On("Update", mock.Anything, testUserID,
		map[string]interface{}{"phone_confirmed": true}).Return(nil)

	f.clock.Advance(120 * time.Second)
	require.NoError(t, f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, code))
	f.users.AssertExpectations(t)

	// One-time use: the same code cannot be redeemed twice.
	err := f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, code)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerify_NoPendingCode(t *testing.T) {
	f := newFixture(t, true)
	err := f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, "123456")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerify_AfterExpiry_FailsAndEvicts(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	code := issueSMS(t, f)

	f.clock.Advance(301 * time.Second)
	err := f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, code)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExpired))

	// Entry is evicted on the expired read, so the next attempt is NotFound.
	err = f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, code)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerify_WrongCode_RetainsEntryForRetry(t *testing.T) {
	f := newFixture(t, true)
	f.expectOwner()
	code := issueSMS(t, f)

	wrong := "999999"
	if wrong == code {
		wrong = "999998"
	}

	f.clock.Advance(10 * time.Second)
	err := f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, wrong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMismatch))

	f.users.On("Update", mock.Anything, testUserID, mock.Anything).Return(nil)
	f.clock.Advance(10 * time.Second)
	assert.NoError(t, f.svc.Verify(context.Background(), testUserID, domain.ChannelSMS, testPhone, code))
}

func TestVerify_Email_FlipsEmailConfirmed(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("Get", mock.Anything, testUserID).Return(f.ownerUser(), nil)
	f.mail.On("SendEmail", testEmail, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.Issue(context.Background(), testUserID, domain.ChannelEmail, testEmail))

	f.users.On("Update", mock.Anything, testUserID,
		map[string]interface{}{"email_confirmed": true}).Return(nil)
	require.NoError(t, f.svc.Verify(context.Background(), testUserID, domain.ChannelEmail, testEmail, f.mail.lastCode))
	f.users.AssertExpectations(t)
}

// --- CheckPhone ---

func TestCheckPhone_Unknown(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("GetByPhone", mock.Anything, testPhone).Return(nil, domain.ErrNotFound)

	st, err := f.svc.CheckPhone(context.Background(), testPhone, false)
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.Nil(t, st.IsVerified)
}

func TestCheckPhone_ExistsUnverified(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("GetByPhone", mock.Anything, testPhone).
		Return(&domain.User{UserID: "u2", PhoneConfirmed: false}, nil)

	st, err := f.svc.CheckPhone(context.Background(), testPhone, true)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	require.NotNil(t, st.IsVerified)
	assert.False(t, *st.IsVerified)
}

func TestCheckPhone_ExistsVerified(t *testing.T) {
	f := newFixture(t, true)
	f.users.On("GetByPhone", mock.Anything, testPhone).
		Return(&domain.User{UserID: "u2", PhoneConfirmed: true}, nil)

	st, err := f.svc.CheckPhone(context.Background(), testPhone, true)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	require.NotNil(t, st.IsVerified)
	assert.True(t, *st.IsVerified)
}
