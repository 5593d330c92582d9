// File: internal/infra/adapters/provider/payload.go
package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-vpn-subscription/internal/domain"
)

// Payload is the identifier set we round-trip through a provider's checkout
// flow so an asynchronous callback can be matched back to our intent without
// a server-side session.
type Payload struct {
	IntentID string `json:"intent_id"`
	IssuedAt int64  `json:"issued_at"`
}

// Codec signs and verifies opaque checkout payloads with HMAC-SHA256.
//
// Two wire formats exist:
//   - standard: "pi.<base64url(json)>.<hex hmac>" with a full 32-byte tag;
//   - compact:  "v1:<intentID>:<issuedAt>:<16 hex chars>" for the in-chat
//     provider, whose invoice payload is limited to 128 bytes.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

const standardPrefix = "pi"

func (c *Codec) Encode(intentID string, issuedAt time.Time) string {
	body, _ := json.Marshal(Payload{IntentID: intentID, IssuedAt: issuedAt.Unix()})
	signed := standardPrefix + "." + base64.RawURLEncoding.EncodeToString(body)
	return signed + "." + c.tag(signed)
}

func (c *Codec) Verify(s string) (*Payload, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] != standardPrefix {
		return nil, domain.ErrSignatureInvalid
	}
	signed := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(c.tag(signed)), []byte(parts[2])) {
		return nil, domain.ErrSignatureInvalid
	}
	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, domain.ErrSignatureInvalid
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, domain.ErrSignatureInvalid
	}
	return &p, nil
}

const compactPrefix = "v1"

func (c *Codec) EncodeCompact(intentID string, issuedAt time.Time) string {
	base := fmt.Sprintf("%s:%s:%d", compactPrefix, intentID, issuedAt.Unix())
	return base + ":" + c.tag(base)[:16]
}

func (c *Codec) VerifyCompact(s string) (*Payload, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != compactPrefix {
		return nil, domain.ErrSignatureInvalid
	}
	base := strings.Join(parts[:3], ":")
	if !hmac.Equal([]byte(c.tag(base)[:16]), []byte(parts[3])) {
		return nil, domain.ErrSignatureInvalid
	}
	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, domain.ErrSignatureInvalid
	}
	return &Payload{IntentID: parts[1], IssuedAt: issued}, nil
}

func (c *Codec) tag(s string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
