package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// AssetClient implements ports.AssetClient against ERC-20 contracts, signing
// with the operator key.
type AssetClient struct {
	client   *Client
	erc20ABI abi.ABI
}

// NewAssetClient creates an ERC-20 asset client on top of the RPC client.
func NewAssetClient(client *Client) (*AssetClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &AssetClient{client: client, erc20ABI: parsed}, nil
}

// BalanceOf returns the asset balance of owner.
func (a *AssetClient) BalanceOf(ctx context.Context, asset, owner common.Address) (*big.Int, error) {
	callData, err := a.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := a.client.call(ctx, asset, callData)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	return a.unpackUint256(out, "balanceOf")
}

// Allowance returns how much spender may pull from owner.
func (a *AssetClient) Allowance(ctx context.Context, asset, owner, spender common.Address) (*big.Int, error) {
	callData, err := a.erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	out, err := a.client.call(ctx, asset, callData)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}
	return a.unpackUint256(out, "allowance")
}

// Transfer moves amount from the operator-controlled account to the recipient.
func (a *AssetClient) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	callData, err := a.erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	if _, err := a.client.submit(ctx, asset, nil, callData); err != nil {
		return fmt.Errorf("transfer %s of %s to %s: %w", amount, asset.Hex(), to.Hex(), err)
	}
	return nil
}

// TransferFrom pulls pre-approved funds from the sender into the recipient.
func (a *AssetClient) TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	callData, err := a.erc20ABI.Pack("transferFrom", from, to, amount)
	if err != nil {
		return fmt.Errorf("pack transferFrom: %w", err)
	}
	if _, err := a.client.submit(ctx, asset, nil, callData); err != nil {
		return fmt.Errorf("transferFrom %s of %s: %w", amount, asset.Hex(), err)
	}
	return nil
}

// Approve grants spender an exact allowance; unbounded approvals are never
// issued.
func (a *AssetClient) Approve(ctx context.Context, asset, spender common.Address, amount *big.Int) error {
	callData, err := a.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	if _, err := a.client.submit(ctx, asset, nil, callData); err != nil {
		return fmt.Errorf("approve %s of %s for %s: %w", amount, asset.Hex(), spender.Hex(), err)
	}
	return nil
}

func (a *AssetClient) unpackUint256(out []byte, method string) (*big.Int, error) {
	values, err := a.erc20ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	result, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected return type %T", method, values[0])
	}
	return result, nil
}
