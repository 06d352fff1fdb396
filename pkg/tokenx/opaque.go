package tokenx

import (
	"time"

	"github.com/payprop/oauth2-server/pkg/cryptox"
	"github.com/payprop/oauth2-server/pkg/idx"
)

// Opaque mints high-entropy random tokens: a ULID timestamp component for
// uniqueness followed by 32 bytes of randomness, both base64url/base32
// alphabets, so the value needs no escaping in a query string.
type Opaque struct{}

var _ Codec = Opaque{}

func NewOpaque() Opaque { return Opaque{} }

func (Opaque) Issue(c Claims) (string, error) {
	issued := c.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}

	random, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	return idx.NewAt(issued).String() + "." + random, nil
}

func (Opaque) Parse(token string) (Claims, error) {
	return Claims{}, ErrOpaqueToken
}
