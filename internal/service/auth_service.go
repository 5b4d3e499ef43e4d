package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"settlement-vault/internal/core/ports"
	"settlement-vault/pkg/apperror"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// loginChallengeSkew bounds how stale a signed login challenge may be.
const loginChallengeSkew = 5 * time.Minute

// SignatureAuthService implements ports.AuthService. Callers sign a canonical
// challenge with the key behind their address; a valid signature yields a
// session token for that address. No address registry exists on purpose:
// capability checks against the vault's stored holders happen per operation.
type SignatureAuthService struct {
	tokenSvc ports.TokenService
	now      func() time.Time
	log      zerolog.Logger
}

// NewSignatureAuthService creates a new signature-challenge auth service.
func NewSignatureAuthService(tokenSvc ports.TokenService, log zerolog.Logger) *SignatureAuthService {
	return &SignatureAuthService{
		tokenSvc: tokenSvc,
		now:      time.Now,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// LoginChallenge returns the exact message a caller must sign for the given
// address and timestamp.
func LoginChallenge(caller common.Address, issuedAt int64) string {
	return fmt.Sprintf("settlement-vault login: %s at %d", strings.ToLower(caller.Hex()), issuedAt)
}

// Login verifies the signed challenge and issues a session token.
func (s *SignatureAuthService) Login(_ context.Context, caller common.Address, issuedAt int64, signature string) (string, time.Time, error) {
	now := s.now()
	issued := time.Unix(issuedAt, 0)
	if issued.Before(now.Add(-loginChallengeSkew)) || issued.After(now.Add(loginChallengeSkew)) {
		return "", time.Time{}, apperror.ErrInvalidToken()
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", time.Time{}, apperror.ErrInvalidToken()
	}
	// Wallets emit V as 27/28; crypto.SigToPub wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = bytes.Clone(sig)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := accounts.TextHash([]byte(LoginChallenge(caller, issuedAt)))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", time.Time{}, apperror.ErrInvalidToken()
	}
	if crypto.PubkeyToAddress(*pub) != caller {
		s.log.Warn().Str("caller", caller.Hex()).Msg("login signature does not match claimed address")
		return "", time.Time{}, apperror.ErrInvalidToken()
	}

	token, expiry, err := s.tokenSvc.Generate(caller)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}
