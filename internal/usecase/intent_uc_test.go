//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/usecase"
)

type intentDeps struct {
	intents *MockIntentRepo
	plans   *MockPlanRepo
	users   *MockUserRepo
	card    *MockProviderAdapter
	crypto  *MockProviderAdapter
}

func newIntentDeps() *intentDeps {
	return &intentDeps{
		intents: NewMockIntentRepo(),
		plans:   NewMockPlanRepo(),
		users:   NewMockUserRepo(),
		card:    &MockProviderAdapter{NameValue: model.ProviderCardlink, CurrencySet: []string{"RUB"}},
		crypto:  &MockProviderAdapter{NameValue: model.ProviderCryptoPay, CurrencySet: []string{"USD", "EUR", "RUB", "UAH", "KZT"}},
	}
}

func (d *intentDeps) newUC(policy usecase.LocalePolicy) usecase.PaymentIntentUseCase {
	adapters := map[model.Provider]adapter.ProviderAdapter{
		model.ProviderCardlink:  d.card,
		model.ProviderCryptoPay: d.crypto,
	}
	return usecase.NewPaymentIntentUseCase(d.intents, d.plans, d.users, adapters, policy, newTestLogger())
}

func (d *intentDeps) seed(ctx context.Context, locale string) {
	d.users.Save(ctx, nil, &model.User{ID: "user-1", TelegramID: 777, Locale: locale, Status: model.UserStatusNew})
	d.plans.SavePlan(ctx, nil, &model.Plan{ID: "plan-1", Name: "Premium", Active: true})
	d.plans.SaveVariant(ctx, nil, &model.PlanVariant{
		ID: "variant-1", PlanID: "plan-1", PeriodDays: 30, Amount: 49900, Currency: "RUB",
		DefaultProvider: model.ProviderCardlink, Active: true,
	})
}

func TestPaymentIntentUseCase_CreateForVariant(t *testing.T) {
	ctx := context.Background()
	ruOnly := usecase.LocalePolicy{Provider: model.ProviderCardlink, Allowed: []string{"ru"}, AllowUnknown: false}

	t.Run("should create a pending intent with checkout artifact", func(t *testing.T) {
		// --- Arrange ---
		d := newIntentDeps()
		d.seed(ctx, "ru")
		uc := d.newUC(ruOnly)

		// --- Act ---
		res, err := uc.CreateForVariant(ctx, "user-1", "variant-1", "", "")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Unsupported != nil {
			t.Fatalf("expected an intent, got unsupported: %s", res.Unsupported.Reason)
		}
		in := res.Intent
		if in.Status != model.IntentStatusPending {
			t.Errorf("status = %s, want pending", in.Status)
		}
		if in.Provider != model.ProviderCardlink {
			t.Errorf("provider = %s, want the variant default", in.Provider)
		}
		if in.Amount != 49900 || in.Currency != "RUB" {
			t.Errorf("price snapshot = %d %s, want 49900 RUB", in.Amount, in.Currency)
		}
		if in.ExternalID == nil || in.CheckoutURL == nil {
			t.Fatal("expected checkout artifact on the intent")
		}
		stored, err := d.intents.FindByID(ctx, nil, in.ID)
		if err != nil {
			t.Fatal("intent was not persisted")
		}
		if stored.SignedPayload == "" {
			t.Error("signed payload must be persisted for callback matching")
		}
		if len(d.card.Calls) != 1 || d.card.Calls[0].IntentID != in.ID {
			t.Error("checkout must be created for the new intent")
		}
	})

	t.Run("should return typed unsupported for a locale-restricted provider", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "en")
		uc := d.newUC(ruOnly)

		res, err := uc.CreateForVariant(ctx, "user-1", "variant-1", model.ProviderCardlink, "")
		if err != nil {
			t.Fatalf("eligibility failures must not be errors, got: %v", err)
		}
		if res.Unsupported == nil {
			t.Fatal("expected an unsupported result")
		}
		if len(d.card.Calls) != 0 {
			t.Error("no checkout may be attempted for an ineligible user")
		}
	})

	t.Run("should let an unknown locale through when configured", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "")
		uc := d.newUC(usecase.LocalePolicy{Provider: model.ProviderCardlink, Allowed: []string{"ru"}, AllowUnknown: true})

		res, err := uc.CreateForVariant(ctx, "user-1", "variant-1", model.ProviderCardlink, "")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Unsupported != nil {
			t.Fatalf("unknown locale should pass with allow_unknown_locale, got: %s", res.Unsupported.Reason)
		}
	})

	t.Run("should return unsupported when the provider does not accept the currency", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "ru")
		d.card.CurrencySet = []string{"USD"}
		uc := d.newUC(ruOnly)

		res, err := uc.CreateForVariant(ctx, "user-1", "variant-1", model.ProviderCardlink, "")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Unsupported == nil {
			t.Fatal("expected an unsupported result for a currency the provider cannot take")
		}
	})

	t.Run("should cancel the intent when checkout creation fails", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "ru")
		d.card.CreateCheckoutFunc = func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
			return nil, errors.New("provider down")
		}
		uc := d.newUC(ruOnly)

		res, err := uc.CreateForVariant(ctx, "user-1", "variant-1", model.ProviderCardlink, "")
		if err != nil {
			t.Fatalf("expected a typed result, got: %v", err)
		}
		if res.Unsupported == nil {
			t.Fatal("expected an unsupported result after checkout failure")
		}
		// The intent must have been canceled, not left dangling as pending.
		for _, in := range d.card.Calls {
			got, err := d.intents.FindByID(ctx, nil, in.IntentID)
			if err != nil {
				t.Fatal("intent must still exist")
			}
			if got.Status != model.IntentStatusCanceled {
				t.Errorf("intent status = %s, want canceled after checkout failure", got.Status)
			}
		}
	})

	t.Run("should refuse an inactive variant", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "ru")
		d.plans.SaveVariant(ctx, nil, &model.PlanVariant{
			ID: "variant-1", PlanID: "plan-1", PeriodDays: 30, Amount: 49900, Currency: "RUB",
			DefaultProvider: model.ProviderCardlink, Active: false,
		})
		uc := d.newUC(ruOnly)

		_, err := uc.CreateForVariant(ctx, "user-1", "variant-1", "", "")
		if !errors.Is(err, domain.ErrVariantInactive) {
			t.Fatalf("expected ErrVariantInactive, got: %v", err)
		}
	})

	t.Run("should refuse a trial plan", func(t *testing.T) {
		d := newIntentDeps()
		d.seed(ctx, "ru")
		d.plans.SavePlan(ctx, nil, &model.Plan{ID: "plan-1", Name: "Premium", Active: true, Trial: true})
		uc := d.newUC(ruOnly)

		_, err := uc.CreateForVariant(ctx, "user-1", "variant-1", "", "")
		if !errors.Is(err, domain.ErrPlanInactive) {
			t.Fatalf("trial plans are granted, never sold; expected ErrPlanInactive, got: %v", err)
		}
	})
}

func TestPaymentIntentUseCase_MarkExpiredIntents(t *testing.T) {
	ctx := context.Background()
	d := newIntentDeps()
	uc := d.newUC(usecase.LocalePolicy{})

	d.intents.Save(ctx, nil, &model.PaymentIntent{
		ID: "stale", Status: model.IntentStatusPending, ExpiresAt: time.Now().Add(-time.Minute),
	})
	d.intents.Save(ctx, nil, &model.PaymentIntent{
		ID: "fresh", Status: model.IntentStatusPending, ExpiresAt: time.Now().Add(time.Hour),
	})

	n, err := uc.MarkExpiredIntents(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d intents, want 1", n)
	}
	stale, _ := d.intents.FindByID(ctx, nil, "stale")
	if stale.Status != model.IntentStatusExpired {
		t.Errorf("stale intent status = %s, want expired", stale.Status)
	}
	fresh, _ := d.intents.FindByID(ctx, nil, "fresh")
	if fresh.Status != model.IntentStatusPending {
		t.Errorf("fresh intent status = %s, want pending", fresh.Status)
	}
}
