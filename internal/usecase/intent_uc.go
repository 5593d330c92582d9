// File: internal/usecase/intent_uc.go
package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PaymentIntentUseCase = (*intentUC)(nil)

type PaymentIntentUseCase interface {
	// CreateForVariant creates a pending intent plus a provider checkout
	// artifact. Eligibility failures come back as a typed Unsupported result,
	// never as an error.
	CreateForVariant(ctx context.Context, userID, variantID string, provider model.Provider, authToken string) (*CreateIntentResult, error)
	// MarkExpiredIntents sweeps pending intents whose expiry passed.
	MarkExpiredIntents(ctx context.Context) (int64, error)
}

// Unsupported explains why an intent could not be created with the requested
// provider. It is a result, not an error: the caller shows the reason and
// offers another provider.
type Unsupported struct {
	Reason string
}

type CreateIntentResult struct {
	Intent      *model.PaymentIntent
	Unsupported *Unsupported
}

// LocalePolicy restricts one provider to a set of user locales. AllowUnknown
// decides what happens when the user never reported a locale; the permissive
// default of the legacy system is now an explicit setting.
type LocalePolicy struct {
	Provider     model.Provider
	Allowed      []string
	AllowUnknown bool
}

func (p LocalePolicy) permits(locale string) bool {
	if locale == "" {
		return p.AllowUnknown
	}
	for _, l := range p.Allowed {
		if l == locale {
			return true
		}
	}
	return false
}

// Per-provider checkout lifetimes used until (and unless) the provider
// reports its own TTL.
var defaultIntentTTL = map[model.Provider]time.Duration{
	model.ProviderCryptoPay: 24 * time.Hour,
	model.ProviderCardlink:  15 * time.Minute,
	model.ProviderStars:     15 * time.Minute,
}

type intentUC struct {
	intents  repository.PaymentIntentRepository
	plans    repository.PlanRepository
	users    repository.UserRepository
	adapters map[model.Provider]adapter.ProviderAdapter
	locale   LocalePolicy
	entropy  *ulid.MonotonicEntropy
	log      *zerolog.Logger
}

func NewPaymentIntentUseCase(
	intents repository.PaymentIntentRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	adapters map[model.Provider]adapter.ProviderAdapter,
	locale LocalePolicy,
	logger *zerolog.Logger,
) *intentUC {
	l := logger.With().Str("component", "PaymentIntentUC").Logger()
	return &intentUC{
		intents:  intents,
		plans:    plans,
		users:    users,
		adapters: adapters,
		locale:   locale,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		log:      &l,
	}
}

func unsupported(format string, args ...any) *CreateIntentResult {
	return &CreateIntentResult{Unsupported: &Unsupported{Reason: fmt.Sprintf(format, args...)}}
}

func (u *intentUC) CreateForVariant(ctx context.Context, userID, variantID string, provider model.Provider, authToken string) (*CreateIntentResult, error) {
	if userID == "" || variantID == "" {
		return nil, domain.ErrInvalidArgument
	}

	variant, err := u.plans.FindVariantByID(ctx, nil, variantID)
	if err != nil {
		return nil, err
	}
	if !variant.Active {
		return nil, domain.ErrVariantInactive
	}
	plan, err := u.plans.FindPlanByID(ctx, nil, variant.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active || plan.Trial {
		return nil, domain.ErrPlanInactive
	}

	// Explicit provider wins, else the variant's stored default.
	if provider == "" {
		provider = variant.DefaultProvider
	}
	pa, ok := u.adapters[provider]
	if !ok {
		return unsupported("provider %q is not configured", provider), nil
	}

	if provider == u.locale.Provider {
		user, err := u.users.FindByID(ctx, nil, userID)
		if err != nil {
			return nil, err
		}
		if !u.locale.permits(user.Locale) {
			return unsupported("provider %q is not available for locale %q", provider, user.Locale), nil
		}
	}

	if !currencySupported(pa.Currencies(), variant.Currency) {
		return unsupported("provider %q does not accept %s", provider, variant.Currency), nil
	}

	now := time.Now().UTC()
	in := &model.PaymentIntent{
		ID:        ulid.MustNew(ulid.Timestamp(now), u.entropy).String(),
		UserID:    userID,
		PlanID:    variant.PlanID,
		VariantID: variant.ID,
		Provider:  provider,
		Amount:    variant.Amount,
		Currency:  variant.Currency,
		Status:    model.IntentStatusPending,
		ExpiresAt: now.Add(defaultIntentTTL[provider]),
		CreatedAt: now,
	}
	if err := u.intents.Save(ctx, nil, in); err != nil {
		return nil, err
	}

	co, err := pa.CreateCheckout(ctx, adapter.CheckoutRequest{
		IntentID:    in.ID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: fmt.Sprintf("%s / %d days", plan.Name, variant.PeriodDays),
		AuthToken:   authToken,
	})
	if err != nil {
		// Never leave a dangling pending intent without a checkout artifact.
		if _, terr := u.intents.TransitionStatus(ctx, nil, in.ID, model.IntentStatusCanceled, model.IntentStatusPending); terr != nil {
			u.log.Error().Err(terr).Str("intent_id", in.ID).Msg("cancel after checkout failure")
		}
		metrics.IncIntent(string(provider), "checkout_failed")
		u.log.Warn().Err(err).Str("intent_id", in.ID).Str("provider", string(provider)).Msg("checkout creation failed")
		return unsupported("provider %q rejected the checkout: %v", provider, err), nil
	}

	ttl := co.TTL
	if ttl <= 0 {
		ttl = defaultIntentTTL[provider]
	}
	expiresAt := now.Add(ttl)
	if err := u.intents.SetCheckout(ctx, nil, in.ID, co.ExternalID, co.CheckoutURL, co.SignedPayload, expiresAt); err != nil {
		return nil, err
	}
	in.ExternalID = &co.ExternalID
	in.CheckoutURL = &co.CheckoutURL
	in.SignedPayload = co.SignedPayload
	in.ExpiresAt = expiresAt

	metrics.IncIntent(string(provider), "created")
	u.log.Info().Str("intent_id", in.ID).Str("provider", string(provider)).
		Int64("amount", in.Amount).Str("currency", in.Currency).Msg("intent created")
	return &CreateIntentResult{Intent: in}, nil
}

func (u *intentUC) MarkExpiredIntents(ctx context.Context) (int64, error) {
	n, err := u.intents.MarkExpired(ctx, nil, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddIntentsExpired(n)
	}
	return n, nil
}

func currencySupported(set []string, currency string) bool {
	for _, c := range set {
		if c == currency {
			return true
		}
	}
	return false
}
