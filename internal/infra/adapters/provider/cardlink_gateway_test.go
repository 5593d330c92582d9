package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
)

const merchantSecret = "merchant-secret"

func newCardGateway(t *testing.T) *CardlinkGateway {
	t.Helper()
	g, err := NewCardlinkGateway("api-key", merchantSecret, "https://s.example", "https://f.example", NewCodec("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"merchant": "m-1"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestCardlinkVerifyCallbackToken(t *testing.T) {
	g := newCardGateway(t)

	t.Run("accepts a token signed with the merchant secret", func(t *testing.T) {
		if err := g.VerifyCallbackToken(signedToken(t, merchantSecret)); err != nil {
			t.Fatalf("valid token rejected: %v", err)
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		err := g.VerifyCallbackToken(signedToken(t, "attacker"))
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got: %v", err)
		}
	})

	t.Run("rejects the none algorithm", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatal(err)
		}
		if err := g.VerifyCallbackToken(tok); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got: %v", err)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if err := g.VerifyCallbackToken("not.a.token"); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got: %v", err)
		}
	})
}

func TestCardlinkParseCallback(t *testing.T) {
	g := newCardGateway(t)
	payload := g.codec.Encode("01J0INTENT", time.Now())

	base := func(status string) *CardlinkCallback {
		return &CardlinkCallback{
			BillID:     "bill-1",
			OrderID:    payload,
			Status:     status,
			Amount:     "499.00",
			CurrencyIn: "RUB",
			TrsID:      "trs-1",
			Token:      signedToken(t, merchantSecret),
		}
	}

	t.Run("maps SUCCESS to a confirmed event", func(t *testing.T) {
		ev, err := g.ParseCallback(base("SUCCESS"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ev.Kind != model.EventConfirmed || ev.Provider != model.ProviderCardlink {
			t.Errorf("event = %+v", ev)
		}
		if ev.IntentID != "01J0INTENT" {
			t.Errorf("intent id = %q", ev.IntentID)
		}
		if ev.Amount != 49900 || ev.Currency != "RUB" {
			t.Errorf("amount = %d %s", ev.Amount, ev.Currency)
		}
		if ev.PayKey != "trs-1" {
			t.Errorf("pay key = %q, want the transaction id", ev.PayKey)
		}
	})

	t.Run("maps FAIL to a canceled event", func(t *testing.T) {
		ev, err := g.ParseCallback(base("FAIL"))
		if err != nil || ev.Kind != model.EventCanceled {
			t.Fatalf("event = %+v, err = %v", ev, err)
		}
	})

	t.Run("maps CHARGEBACK to a chargeback event", func(t *testing.T) {
		ev, err := g.ParseCallback(base("CHARGEBACK"))
		if err != nil || ev.Kind != model.EventChargeback {
			t.Fatalf("event = %+v, err = %v", ev, err)
		}
	})

	t.Run("ignores unknown statuses", func(t *testing.T) {
		ev, err := g.ParseCallback(base("PENDING"))
		if err != nil || ev != nil {
			t.Fatalf("expected nil/nil, got %+v / %v", ev, err)
		}
	})

	t.Run("falls back to bill id when there is no transaction id", func(t *testing.T) {
		cb := base("SUCCESS")
		cb.TrsID = ""
		ev, err := g.ParseCallback(cb)
		if err != nil {
			t.Fatal(err)
		}
		if ev.PayKey != "bill-1" {
			t.Errorf("pay key = %q, want the bill id", ev.PayKey)
		}
	})

	t.Run("refuses an unverified token before reading any field", func(t *testing.T) {
		cb := base("SUCCESS")
		cb.Token = signedToken(t, "attacker")
		if _, err := g.ParseCallback(cb); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got: %v", err)
		}
	})

	t.Run("keeps external correlation when the order id was mangled", func(t *testing.T) {
		cb := base("SUCCESS")
		cb.OrderID = "mangled"
		ev, err := g.ParseCallback(cb)
		if err != nil {
			t.Fatal(err)
		}
		if ev.IntentID != "" {
			t.Error("mangled order id must not set the intent id")
		}
		if len(ev.ExternalIDs) == 0 || ev.ExternalIDs[0] != "bill-1" {
			t.Error("external id chain must carry the bill id")
		}
	})
}
