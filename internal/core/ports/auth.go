package ports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenService issues and validates API session tokens. The token binds a
// caller address; all capability checks happen later, in the service layer,
// against the vault's stored holders.
type TokenService interface {
	Generate(caller common.Address) (string, time.Time, error)
	Validate(tokenString string) (common.Address, error)
}

// AuthService exchanges a signed challenge for a session token. Callers prove
// control of an address by signing a canonical login message with its key.
type AuthService interface {
	Login(ctx context.Context, caller common.Address, issuedAt int64, signature string) (string, time.Time, error)
}
