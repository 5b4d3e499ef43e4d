package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"settlement-vault/internal/core/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const routerABIJSON = `[
	{"name":"getFee","type":"function","stateMutability":"view","inputs":[{"name":"destination","type":"uint64"},{"name":"message","type":"bytes"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"send","type":"function","stateMutability":"payable","inputs":[{"name":"destination","type":"uint64"},{"name":"message","type":"bytes"}],"outputs":[{"name":"","type":"bytes32"}]}
]`

// RelayClient implements ports.RelayClient against the cross-domain router
// contract. The router never routes to the vault's own domain; that case is
// settled locally before this client is reached.
type RelayClient struct {
	client      *Client
	router      common.Address
	localDomain domain.Selector
	routerABI   abi.ABI
}

// NewRelayClient creates a relay client bound to one router address.
func NewRelayClient(client *Client, router common.Address, localDomain domain.Selector) (*RelayClient, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &RelayClient{client: client, router: router, localDomain: localDomain, routerABI: parsed}, nil
}

// GetFee quotes the relay fee for delivering msg to dest. Read-only.
func (r *RelayClient) GetFee(ctx context.Context, dest domain.Selector, msg domain.TransferMessage) (*big.Int, error) {
	if dest == r.localDomain {
		return nil, fmt.Errorf("destination %d is the local domain", dest)
	}

	callData, err := r.routerABI.Pack("getFee", uint64(dest), msg.Encode())
	if err != nil {
		return nil, fmt.Errorf("pack getFee: %w", err)
	}
	out, err := r.client.call(ctx, r.router, callData)
	if err != nil {
		return nil, fmt.Errorf("call getFee: %w", err)
	}

	values, err := r.routerABI.Unpack("getFee", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getFee: %w", err)
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getFee: unexpected return type %T", values[0])
	}
	return fee, nil
}

// Send submits the message to the router. value carries the fee when the
// relay is paid in native value. The returned identifier is the canonical
// message hash; the router derives the same value from the encoded message.
func (r *RelayClient) Send(ctx context.Context, dest domain.Selector, msg domain.TransferMessage, value *big.Int) (common.Hash, error) {
	if dest == r.localDomain {
		return common.Hash{}, fmt.Errorf("destination %d is the local domain", dest)
	}

	callData, err := r.routerABI.Pack("send", uint64(dest), msg.Encode())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack send: %w", err)
	}
	if _, err := r.client.submit(ctx, r.router, value, callData); err != nil {
		return common.Hash{}, fmt.Errorf("router send to domain %d: %w", dest, err)
	}
	return msg.ID(), nil
}
