package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holidayheroes/holiday-heroes/internal/config"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

type MockSubscriptionStorage struct{ mock.Mock }

func (m *MockSubscriptionStorage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *MockSubscriptionStorage) GetSubscriptionBySessionID(ctx context.Context, sessionID string) (*models.Subscription, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionStorage) SetExternalID(ctx context.Context, sessionID, externalID string) error {
	args := m.Called(ctx, sessionID, externalID)
	return args.Error(0)
}

func (m *MockSubscriptionStorage) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionStorage) GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionStorage) ApplyStatusTransition(ctx context.Context, p repository.TransitionParams) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionStorage) MarkCancelRequested(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *MockSubscriptionStorage) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockUserStorage struct{ mock.Mock }

func (m *MockUserStorage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStorage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	args := m.Called(ctx, userUID, customerID)
	return args.Error(0)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateCustomer(email, userUID, name string) (*paymentgateway.CustomerRef, error) {
	args := m.Called(email, userUID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.CustomerRef), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(customer paymentgateway.CustomerRef, userUID, priceID, successURL, cancelURL string) (*paymentgateway.SessionRef, error) {
	args := m.Called(customer, userUID, priceID, successURL, cancelURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.SessionRef), args.Error(1)
}

func (m *MockGateway) CancelSubscription(externalID string) (*paymentgateway.SubscriptionSnapshot, error) {
	args := m.Called(externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.SubscriptionSnapshot), args.Error(1)
}

func (m *MockGateway) ConstructWebhookEvent(rawBody []byte, signature string) (*paymentgateway.Event, error) {
	args := m.Called(rawBody, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Event), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifySubscriptionChange(email, status string) {
	m.Called(email, status)
}

func newTestService(subs *MockSubscriptionStorage, users *MockUserStorage,
	gw *MockGateway, notifier *MockNotifier) *Service {
	cfg := config.Stripe{
		PriceID:    "price_test",
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(subs, users, gw, notifier, cfg, log)
}

func TestNextStatus(t *testing.T) {
	snap := func(status string) *paymentgateway.SubscriptionSnapshot {
		return &paymentgateway.SubscriptionSnapshot{Status: status}
	}
	tests := []struct {
		name     string
		current  string
		kind     paymentgateway.EventKind
		snapshot *paymentgateway.SubscriptionSnapshot
		want     string
		wantOK   bool
	}{
		{"Чекаут завершён, подписка активна", models.SubscriptionPending,
			paymentgateway.EventCheckoutCompleted, snap(models.SubscriptionActive),
			models.SubscriptionActive, true},
		{"Чекаут завершён, подписка в триале", models.SubscriptionPending,
			paymentgateway.EventCheckoutCompleted, snap(models.SubscriptionTrialing),
			models.SubscriptionTrialing, true},
		{"Чекаут завершён не из pending игнорируется", models.SubscriptionActive,
			paymentgateway.EventCheckoutCompleted, snap(models.SubscriptionActive), "", false},
		{"Оплата прошла из past_due", models.SubscriptionPastDue,
			paymentgateway.EventPaymentSucceeded, nil, models.SubscriptionActive, true},
		{"Оплата прошла из триала", models.SubscriptionTrialing,
			paymentgateway.EventPaymentSucceeded, nil, models.SubscriptionActive, true},
		{"Продление активной подписки", models.SubscriptionActive,
			paymentgateway.EventPaymentSucceeded, nil, models.SubscriptionActive, true},
		{"Оплата не прошла у активной", models.SubscriptionActive,
			paymentgateway.EventPaymentFailed, nil, models.SubscriptionPastDue, true},
		{"Оплата не прошла у pending игнорируется", models.SubscriptionPending,
			paymentgateway.EventPaymentFailed, nil, "", false},
		{"Удаление подписки провайдером", models.SubscriptionPastDue,
			paymentgateway.EventSubscriptionDeleted, nil, models.SubscriptionCanceled, true},
		{"Терминальный canceled поглощает события", models.SubscriptionCanceled,
			paymentgateway.EventPaymentSucceeded, nil, "", false},
		{"Терминальный expired поглощает события", models.SubscriptionExpired,
			paymentgateway.EventSubscriptionDeleted, nil, "", false},
		{"Обновление со снимком past_due", models.SubscriptionActive,
			paymentgateway.EventSubscriptionUpdated, snap(models.SubscriptionPastDue),
			models.SubscriptionPastDue, true},
		{"Обновление без снимка игнорируется", models.SubscriptionActive,
			paymentgateway.EventSubscriptionUpdated, nil, "", false},
		{"Игнорируемое событие", models.SubscriptionActive,
			paymentgateway.EventIgnored, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextStatus(tt.current, tt.kind, tt.snapshot)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_StartCheckout(t *testing.T) {
	customerID := "cus_123"
	tests := []struct {
		name      string
		mockSetup func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway)
		wantURL   string
		wantErr   error
	}{
		{
			name: "Успешный чекаут для нового клиента",
			mockSetup: func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(nil, repository.ErrNotFound)
				users.On("GetUser", mock.Anything, "user-1").
					Return(&models.User{UUID: "user-1", Email: "a@b.c", Name: "Alice"}, nil)
				gw.On("CreateCustomer", "a@b.c", "user-1", "Alice").
					Return(&paymentgateway.CustomerRef{ID: customerID}, nil)
				users.On("SetStripeCustomerID", mock.Anything, "user-1", customerID).Return(nil)
				gw.On("CreateCheckoutSession", paymentgateway.CustomerRef{ID: customerID},
					"user-1", "price_test", mock.Anything, mock.Anything).
					Return(&paymentgateway.SessionRef{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil)
				subs.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(s models.Subscription) bool {
					return s.UserUID == "user-1" && s.CheckoutSessionID == "cs_1" &&
						s.Status == models.SubscriptionPending
				})).Return(1, nil)
			},
			wantURL: "https://pay.example/cs_1",
		},
		{
			name: "Существующий клиент не создается повторно",
			mockSetup: func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(nil, repository.ErrNotFound)
				users.On("GetUser", mock.Anything, "user-1").
					Return(&models.User{UUID: "user-1", Email: "a@b.c", StripeCustomerID: &customerID}, nil)
				gw.On("CreateCheckoutSession", paymentgateway.CustomerRef{ID: customerID},
					"user-1", "price_test", mock.Anything, mock.Anything).
					Return(&paymentgateway.SessionRef{ID: "cs_2", URL: "https://pay.example/cs_2"}, nil)
				subs.On("CreateSubscription", mock.Anything, mock.Anything).Return(2, nil)
			},
			wantURL: "https://pay.example/cs_2",
		},
		{
			name: "Действующая подписка блокирует чекаут",
			mockSetup: func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{Status: models.SubscriptionActive}, nil)
			},
			wantErr: ErrAlreadySubscribed,
		},
		{
			name: "Подписка past_due тоже блокирует чекаут",
			mockSetup: func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{Status: models.SubscriptionPastDue}, nil)
			},
			wantErr: ErrAlreadySubscribed,
		},
		{
			name: "Истёкшая подписка не мешает новому чекауту",
			mockSetup: func(subs *MockSubscriptionStorage, users *MockUserStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{Status: models.SubscriptionExpired}, nil)
				users.On("GetUser", mock.Anything, "user-1").
					Return(&models.User{UUID: "user-1", Email: "a@b.c", StripeCustomerID: &customerID}, nil)
				gw.On("CreateCheckoutSession", mock.Anything, "user-1", "price_test",
					mock.Anything, mock.Anything).
					Return(&paymentgateway.SessionRef{ID: "cs_3", URL: "https://pay.example/cs_3"}, nil)
				subs.On("CreateSubscription", mock.Anything, mock.Anything).Return(3, nil)
			},
			wantURL: "https://pay.example/cs_3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := new(MockSubscriptionStorage)
			users := new(MockUserStorage)
			gw := new(MockGateway)
			tt.mockSetup(subs, users, gw)
			svc := newTestService(subs, users, gw, nil)

			url, err := svc.StartCheckout(context.Background(), "user-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, url)
			}
			subs.AssertExpectations(t)
			users.AssertExpectations(t)
			gw.AssertExpectations(t)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(subs *MockSubscriptionStorage, gw *MockGateway)
		wantErr   error
	}{
		{
			name: "Успешная отмена активной подписки",
			mockSetup: func(subs *MockSubscriptionStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{
						ExternalID: "sub_1", Status: models.SubscriptionActive}, nil)
				gw.On("CancelSubscription", "sub_1").
					Return(&paymentgateway.SubscriptionSnapshot{
						ExternalID: "sub_1", Status: models.SubscriptionActive,
						CancelAtPeriodEnd: true}, nil)
				subs.On("MarkCancelRequested", mock.Anything, "sub_1").Return(nil)
			},
		},
		{
			name: "Нет подписки для отмены",
			mockSetup: func(subs *MockSubscriptionStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNoSubscription,
		},
		{
			name: "Терминальная подписка не отменяется",
			mockSetup: func(subs *MockSubscriptionStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{
						ExternalID: "sub_1", Status: models.SubscriptionCanceled}, nil)
			},
			wantErr: ErrNoSubscription,
		},
		{
			name: "Pending подписка без внешнего ID не отменяется",
			mockSetup: func(subs *MockSubscriptionStorage, gw *MockGateway) {
				subs.On("GetCurrentSubscription", mock.Anything, "user-1").
					Return(&models.Subscription{Status: models.SubscriptionPending}, nil)
			},
			wantErr: ErrNoSubscription,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := new(MockSubscriptionStorage)
			gw := new(MockGateway)
			tt.mockSetup(subs, gw)
			svc := newTestService(subs, new(MockUserStorage), gw, nil)

			err := svc.Cancel(context.Background(), "user-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			subs.AssertExpectations(t)
			gw.AssertExpectations(t)
		})
	}
}

func TestService_ProcessWebhookEvent_CheckoutCompleted(t *testing.T) {
	eventAt := time.Now().UTC()
	ev := &paymentgateway.Event{
		ID:             "evt_1",
		Kind:           paymentgateway.EventCheckoutCompleted,
		CreatedAt:      eventAt,
		SubscriptionID: "sub_1",
		SessionID:      "cs_1",
		Snapshot: &paymentgateway.SubscriptionSnapshot{
			ExternalID:  "sub_1",
			Status:      models.SubscriptionActive,
			PeriodStart: eventAt,
			PeriodEnd:   eventAt.AddDate(1, 0, 0),
		},
	}

	subs := new(MockSubscriptionStorage)
	users := new(MockUserStorage)
	notifier := new(MockNotifier)

	subs.On("GetSubscriptionBySessionID", mock.Anything, "cs_1").
		Return(&models.Subscription{
			UserUID: "user-1", CheckoutSessionID: "cs_1",
			Status: models.SubscriptionPending}, nil)
	subs.On("SetExternalID", mock.Anything, "cs_1", "sub_1").Return(nil)
	subs.On("ApplyStatusTransition", mock.Anything, mock.MatchedBy(func(p repository.TransitionParams) bool {
		return p.EventID == "evt_1" && p.ExternalID == "sub_1" &&
			p.FromStatus == models.SubscriptionPending &&
			p.ToStatus == models.SubscriptionActive &&
			p.PeriodStart != nil && p.PeriodEnd != nil
	})).Return(true, nil)
	users.On("GetUser", mock.Anything, "user-1").
		Return(&models.User{UUID: "user-1", Email: "a@b.c"}, nil)
	notifier.On("NotifySubscriptionChange", "a@b.c", models.SubscriptionActive).Return()

	svc := newTestService(subs, users, new(MockGateway), notifier)
	err := svc.ProcessWebhookEvent(context.Background(), ev)

	require.NoError(t, err)
	subs.AssertExpectations(t)
	users.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_ProcessWebhookEvent_DuplicateIsSilent(t *testing.T) {
	ev := &paymentgateway.Event{
		ID:             "evt_dup",
		Kind:           paymentgateway.EventPaymentSucceeded,
		CreatedAt:      time.Now().UTC(),
		SubscriptionID: "sub_1",
	}

	subs := new(MockSubscriptionStorage)
	users := new(MockUserStorage)
	notifier := new(MockNotifier)

	subs.On("GetSubscriptionByExternalID", mock.Anything, "sub_1").
		Return(&models.Subscription{
			UserUID: "user-1", ExternalID: "sub_1",
			Status: models.SubscriptionActive}, nil)
	subs.On("ApplyStatusTransition", mock.Anything, mock.Anything).Return(false, nil)

	svc := newTestService(subs, users, new(MockGateway), notifier)
	err := svc.ProcessWebhookEvent(context.Background(), ev)

	require.NoError(t, err)
	// Повторная доставка не порождает уведомлений.
	notifier.AssertNotCalled(t, "NotifySubscriptionChange", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	subs.AssertExpectations(t)
}

func TestService_ProcessWebhookEvent_TerminalAbsorbs(t *testing.T) {
	ev := &paymentgateway.Event{
		ID:             "evt_late",
		Kind:           paymentgateway.EventPaymentSucceeded,
		CreatedAt:      time.Now().UTC(),
		SubscriptionID: "sub_1",
	}

	subs := new(MockSubscriptionStorage)
	subs.On("GetSubscriptionByExternalID", mock.Anything, "sub_1").
		Return(&models.Subscription{
			UserUID: "user-1", ExternalID: "sub_1",
			Status: models.SubscriptionCanceled}, nil)

	svc := newTestService(subs, new(MockUserStorage), new(MockGateway), nil)
	err := svc.ProcessWebhookEvent(context.Background(), ev)

	require.NoError(t, err)
	// До хранилища переход не доходит: терминальный статус поглощает событие.
	subs.AssertNotCalled(t, "ApplyStatusTransition", mock.Anything, mock.Anything)
}

func TestService_ProcessWebhookEvent_UnknownSubscription(t *testing.T) {
	ev := &paymentgateway.Event{
		ID:             "evt_u",
		Kind:           paymentgateway.EventPaymentFailed,
		CreatedAt:      time.Now().UTC(),
		SubscriptionID: "sub_missing",
	}

	subs := new(MockSubscriptionStorage)
	subs.On("GetSubscriptionByExternalID", mock.Anything, "sub_missing").
		Return(nil, repository.ErrNotFound)

	svc := newTestService(subs, new(MockUserStorage), new(MockGateway), nil)
	err := svc.ProcessWebhookEvent(context.Background(), ev)

	assert.NoError(t, err)
}

func TestService_ProcessWebhookEvent_IgnoredKind(t *testing.T) {
	svc := newTestService(new(MockSubscriptionStorage), new(MockUserStorage), new(MockGateway), nil)
	err := svc.ProcessWebhookEvent(context.Background(), &paymentgateway.Event{
		ID: "evt_x", Kind: paymentgateway.EventIgnored,
	})
	assert.NoError(t, err)
}

func TestService_ExpireLapsed(t *testing.T) {
	subs := new(MockSubscriptionStorage)
	subs.On("ExpireLapsedSubscriptions", mock.Anything, mock.Anything).Return(3, nil)

	svc := newTestService(subs, new(MockUserStorage), new(MockGateway), nil)
	n, err := svc.ExpireLapsed(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
