//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

// =============================
// Repositories (in-memory)
// =============================

// ---- Intent repo ----

type MockIntentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentIntent

	SaveFunc             func(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error
	TransitionStatusFunc func(ctx context.Context, tx repository.Tx, id string, to model.IntentStatus, allowedFrom ...model.IntentStatus) (bool, error)
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{store: make(map[string]*model.PaymentIntent)}
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, in)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *in
	m.store[in.ID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MockIntentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, provider model.Provider, externalID string) (*model.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, in := range m.store {
		if in.Provider == provider && in.ExternalID != nil && *in.ExternalID == externalID {
			cp := *in
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) SetCheckout(ctx context.Context, tx repository.Tx, id, externalID, checkoutURL, signedPayload string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	in.ExternalID = &externalID
	in.CheckoutURL = &checkoutURL
	in.SignedPayload = signedPayload
	in.ExpiresAt = expiresAt
	return nil
}

func (m *MockIntentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, to model.IntentStatus, allowedFrom ...model.IntentStatus) (bool, error) {
	if m.TransitionStatusFunc != nil {
		return m.TransitionStatusFunc(ctx, tx, id, to, allowedFrom...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.store[id]
	if !ok {
		return false, nil
	}
	for _, from := range allowedFrom {
		if in.Status == from {
			in.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *MockIntentRepo) MarkExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, in := range m.store {
		if in.Status == model.IntentStatusPending && !in.ExpiresAt.After(now) {
			in.Status = model.IntentStatusExpired
			n++
		}
	}
	return n, nil
}

// ---- Payment repo ----

type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	UpsertFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.store[p.ID]; ok {
		old.Status = p.Status
		old.UpdatedAt = p.UpdatedAt
		return nil
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.IntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Subscription repo ----

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.PaymentID != nil {
		for id, other := range m.store {
			if id != s.ID && other.PaymentID != nil && *other.PaymentID == *s.PaymentID {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.PaymentID != nil && *s.PaymentID == paymentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Active {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID, excludeID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID && (excludeID == "" || s.ID != excludeID) {
			all = append(all, s)
		}
	}
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EndsAt.After(all[j].EndsAt) })
	cp := *all[0]
	return &cp, nil
}

func (m *MockSubscriptionRepo) DeactivateAllForUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		if s.UserID == userID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// ---- Plan repo ----

type MockPlanRepo struct {
	mu       sync.RWMutex
	plans    map[string]*model.Plan
	variants map[string]*model.PlanVariant
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{plans: make(map[string]*model.Plan), variants: make(map[string]*model.PlanVariant)}
}

func (m *MockPlanRepo) FindPlanByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) FindVariantByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MockPlanRepo) ListActiveVariants(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PlanVariant
	for _, v := range m.variants {
		if v.PlanID == planID && v.Active {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDays < out[j].PeriodDays })
	return out, nil
}

func (m *MockPlanRepo) SavePlan(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) SaveVariant(ctx context.Context, tx repository.Tx, v *model.PlanVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.variants[v.ID] = &cp
	return nil
}

func (m *MockPlanRepo) DeletePlan(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

// ---- User repo ----

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User

	FirstPaidStamps []string // user ids StampFirstPaid was called for
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.TelegramID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) UpdateAccess(ctx context.Context, tx repository.Tx, userID string, expiresAt *time.Time, status model.UserStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.ExpiresAt = expiresAt
	u.Status = status
	return nil
}

func (m *MockUserRepo) StampFirstPaid(ctx context.Context, tx repository.Tx, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	m.FirstPaidStamps = append(m.FirstPaidStamps, userID)
	if u.FirstPaidAt == nil {
		cp := at
		u.FirstPaidAt = &cp
	}
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock ProviderAdapter ----

type MockProviderAdapter struct {
	NameValue          model.Provider
	CurrencySet        []string
	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error)

	mu    sync.Mutex
	Calls []adapter.CheckoutRequest
}

var _ adapter.ProviderAdapter = (*MockProviderAdapter)(nil)

func (m *MockProviderAdapter) Name() model.Provider { return m.NameValue }

func (m *MockProviderAdapter) Currencies() []string { return m.CurrencySet }

func (m *MockProviderAdapter) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	return &adapter.Checkout{
		ExternalID:    "ext-1",
		CheckoutURL:   "https://pay.example/ext-1",
		SignedPayload: "payload",
		TTL:           time.Hour,
	}, nil
}

// ---- Mock AccessNotifier ----

type accessCall struct {
	UserID    string
	ExpiresAt *time.Time
	Status    model.UserStatus
}

type MockAccessNotifier struct {
	mu    sync.Mutex
	Calls []accessCall
	Err   error
}

var _ adapter.AccessNotifier = (*MockAccessNotifier)(nil)

func (m *MockAccessNotifier) UpdateAccess(ctx context.Context, userID string, expiresAt *time.Time, status model.UserStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Calls = append(m.Calls, accessCall{UserID: userID, ExpiresAt: expiresAt, Status: status})
	return nil
}

func (m *MockAccessNotifier) Last() *accessCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Tests that
// need to observe or fail the transaction assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
