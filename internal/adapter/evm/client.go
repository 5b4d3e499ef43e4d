package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const receiptPollInterval = 2 * time.Second

// backend is the subset of ethclient.Client the adapter uses; tests provide a
// fake implementation.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client holds the RPC connection and the operator key used to sign vault
// transactions. The operator address must control the vault's custody account.
type Client struct {
	eth        backend
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
	chainID    *big.Int
	closeFn    func()
	log        zerolog.Logger
}

// Dial connects to the RPC endpoint and loads the operator key.
func Dial(rpcURL string, chainID *big.Int, operatorKeyHex string, log zerolog.Logger) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethereum rpc dial: %w", err)
	}

	signer, err := crypto.HexToECDSA(operatorKeyHex)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	return &Client{
		eth:        eth,
		signer:     signer,
		signerAddr: crypto.PubkeyToAddress(signer.PublicKey),
		chainID:    chainID,
		closeFn:    eth.Close,
		log:        log,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// call executes a read-only contract call at the latest block.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{From: c.signerAddr, To: &to, Data: data}, nil)
}

// submit signs, broadcasts and waits for a state-changing transaction. It
// returns an error when the transaction reverts on chain.
func (c *Client) submit(ctx context.Context, to common.Address, value *big.Int, callData []byte) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.signerAddr, To: &to, Value: value, Data: callData})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.signerAddr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, callData)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.signer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	txHash := signed.Hash()
	if err := c.waitMined(ctx, txHash); err != nil {
		return txHash, err
	}

	c.log.Debug().
		Str("tx_hash", txHash.Hex()).
		Str("to", to.Hex()).
		Msg("transaction confirmed")

	return txHash, nil
}

// waitMined polls for the transaction receipt until confirmed or ctx expires.
func (c *Client) waitMined(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for receipt of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
