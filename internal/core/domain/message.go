package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// TransferMessage is the canonical cross-domain transfer instruction handed to
// the relay. It carries exactly one asset-amount pair and no arbitrary
// payload; the fee token is declared so the relay knows which asset to charge.
// It exists only for the duration of one Pay call.
type TransferMessage struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
	FeeToken  common.Address
}

// BuildTransferMessage constructs the canonical relay message. It is pure and
// deterministic; invalid input (zero amount, null recipient) must be rejected
// by the caller before invoking it.
func BuildTransferMessage(recipient, token common.Address, amount *big.Int, feeToken common.Address) TransferMessage {
	return TransferMessage{
		Recipient: recipient,
		Token:     token,
		Amount:    new(big.Int).Set(amount),
		FeeToken:  feeToken,
	}
}

// Encode returns the canonical byte representation: four 32-byte left-padded
// words in fixed order (recipient, token, amount, feeToken). The gas limit
// word is omitted entirely because it is always zero in this protocol.
func (m TransferMessage) Encode() []byte {
	out := make([]byte, 0, 4*32)
	out = append(out, common.LeftPadBytes(m.Recipient.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(m.Token.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(m.Amount.Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(m.FeeToken.Bytes(), 32)...)
	return out
}

// ID returns the keccak-256 digest of the canonical encoding, used to
// correlate local ledger entries with relay-issued message identifiers.
func (m TransferMessage) ID() common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(m.Encode())
	return common.BytesToHash(h.Sum(nil))
}
