package domain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRecipient = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testFeeToken  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestBuildTransferMessage_CopiesAmount(t *testing.T) {
	amount := big.NewInt(100)
	msg := BuildTransferMessage(testRecipient, testToken, amount, testFeeToken)

	amount.SetInt64(999)
	assert.Equal(t, int64(100), msg.Amount.Int64())
}

func TestTransferMessage_Encode(t *testing.T) {
	msg := BuildTransferMessage(testRecipient, testToken, big.NewInt(100), testFeeToken)

	encoded := msg.Encode()
	require.Len(t, encoded, 128)

	// Fixed field order, each left-padded to 32 bytes.
	assert.Equal(t, testRecipient.Bytes(), encoded[12:32])
	assert.Equal(t, testToken.Bytes(), encoded[44:64])
	assert.Equal(t, "64", hex.EncodeToString(encoded[95:96])) // 100 = 0x64
	assert.Equal(t, testFeeToken.Bytes(), encoded[108:128])
}

func TestTransferMessage_IDDeterministic(t *testing.T) {
	a := BuildTransferMessage(testRecipient, testToken, big.NewInt(100), testFeeToken)
	b := BuildTransferMessage(testRecipient, testToken, big.NewInt(100), testFeeToken)
	c := BuildTransferMessage(testRecipient, testToken, big.NewInt(101), testFeeToken)

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.NotEqual(t, common.Hash{}, a.ID())
}

func TestVault_CreditDebit(t *testing.T) {
	v := &Vault{PrincipalBalance: big.NewInt(0), FeeBalance: big.NewInt(0)}

	v.Credit(BalancePrincipal, big.NewInt(100))
	v.Credit(BalanceFee, big.NewInt(10))
	assert.Equal(t, int64(100), v.PrincipalBalance.Int64())
	assert.Equal(t, int64(10), v.FeeBalance.Int64())

	ok := v.Debit(BalancePrincipal, big.NewInt(40))
	assert.True(t, ok)
	assert.Equal(t, int64(60), v.PrincipalBalance.Int64())
	assert.Equal(t, int64(10), v.FeeBalance.Int64())
}

func TestVault_DebitOverdraftLeavesBalanceUntouched(t *testing.T) {
	v := &Vault{PrincipalBalance: big.NewInt(50), FeeBalance: big.NewInt(5)}

	ok := v.Debit(BalancePrincipal, big.NewInt(51))
	assert.False(t, ok)
	assert.Equal(t, int64(50), v.PrincipalBalance.Int64())

	ok = v.Debit(BalanceFee, big.NewInt(6))
	assert.False(t, ok)
	assert.Equal(t, int64(5), v.FeeBalance.Int64())
}

func TestVault_DebitExactBalance(t *testing.T) {
	v := &Vault{PrincipalBalance: big.NewInt(100), FeeBalance: big.NewInt(0)}

	ok := v.Debit(BalancePrincipal, big.NewInt(100))
	assert.True(t, ok)
	assert.Zero(t, v.PrincipalBalance.Sign())
}

func TestVault_AssetFor(t *testing.T) {
	v := &Vault{PrincipalAsset: testToken, FeeAsset: testFeeToken}
	assert.Equal(t, testToken, v.AssetFor(BalancePrincipal))
	assert.Equal(t, testFeeToken, v.AssetFor(BalanceFee))
}

func TestVault_IsLocal(t *testing.T) {
	v := &Vault{LocalDomain: Selector(1)}
	assert.True(t, v.IsLocal(Selector(1)))
	assert.False(t, v.IsLocal(Selector(2)))
}

func TestBalanceKind_Valid(t *testing.T) {
	assert.True(t, BalancePrincipal.Valid())
	assert.True(t, BalanceFee.Valid())
	assert.False(t, BalanceKind("SOMETHING").Valid())
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress(common.Address{}))
	assert.False(t, IsZeroAddress(testRecipient))
}

func TestIsPositive(t *testing.T) {
	assert.False(t, IsPositive(nil))
	assert.False(t, IsPositive(big.NewInt(0)))
	assert.False(t, IsPositive(big.NewInt(-1)))
	assert.True(t, IsPositive(big.NewInt(1)))
}

func TestBuildPayIdempotencyKey(t *testing.T) {
	id := uuid.New()
	key := BuildPayIdempotencyKey(id, "ORDER-42")
	assert.Contains(t, key, id.String())
	assert.Contains(t, key, "ORDER-42")
}
