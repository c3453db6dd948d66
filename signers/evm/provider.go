package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	relayevm "github.com/metaswap/relay/go/mechanisms/evm"
)

// Backend is the subset of *ethclient.Client the provider needs
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// DefaultReceiptPollInterval is how often WaitForTransactionReceipt polls
const DefaultReceiptPollInterval = 2 * time.Second

// ChainClient implements relayevm.Provider over a JSON-RPC node.
// Direct transactions are signed with the signer's key.
type ChainClient struct {
	backend      Backend
	signer       *ClientSigner
	pollInterval time.Duration
}

// ChainClientOption configures a ChainClient
type ChainClientOption func(*ChainClient)

// WithPollInterval overrides DefaultReceiptPollInterval
func WithPollInterval(d time.Duration) ChainClientOption {
	return func(c *ChainClient) {
		c.pollInterval = d
	}
}

// NewChainClient wraps backend. signer may be nil for read-only use.
func NewChainClient(backend Backend, signer *ClientSigner, opts ...ChainClientOption) *ChainClient {
	c := &ChainClient{
		backend:      backend,
		signer:       signer,
		pollInterval: DefaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialChainClient connects to rpcURL
func DialChainClient(ctx context.Context, rpcURL string, signer *ClientSigner, opts ...ChainClientOption) (*ChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	return NewChainClient(client, signer, opts...), nil
}

// ReadContract reads data from a smart contract.
// Single outputs are returned bare; multiple outputs as []interface{}.
func (c *ChainClient) ReadContract(
	ctx context.Context,
	contractAddress string,
	abiBytes []byte,
	functionName string,
	args ...interface{},
) (interface{}, error) {
	contractABI, err := relayevm.ParseABI(abiBytes)
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	outputs, err := contractABI.Unpack(functionName, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	if len(outputs) == 0 {
		return nil, nil
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}

// GetChainID implements relayevm.Provider
func (c *ChainClient) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.backend.ChainID(ctx)
}

// SuggestGasPrice implements relayevm.Provider
func (c *ChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.backend.SuggestGasPrice(ctx)
}

// BlockNumber implements relayevm.Provider
func (c *ChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// SendTransaction signs a legacy transaction from the signer's account and submits it.
// A zero GasLimit is estimated and a nil GasPrice is taken from the node.
func (c *ChainClient) SendTransaction(ctx context.Context, req relayevm.TransactionRequest) (string, error) {
	if c.signer == nil {
		return "", errors.New("chain client has no signer")
	}
	if !relayevm.IsValidAddress(req.To) {
		return "", fmt.Errorf("invalid recipient %q", req.To)
	}

	to := common.HexToAddress(req.To)
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain id: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.signer.address)
	if err != nil {
		return "", fmt.Errorf("failed to get account nonce: %w", err)
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  c.signer.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return "", err
		}
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), c.signer.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// WaitForTransactionReceipt polls until the transaction is mined or ctx ends
func (c *ChainClient) WaitForTransactionReceipt(ctx context.Context, txHash string) (*relayevm.TransactionReceipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return convertReceipt(receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func convertReceipt(receipt *ethtypes.Receipt) *relayevm.TransactionReceipt {
	out := &relayevm.TransactionReceipt{
		Status: receipt.Status,
		TxHash: receipt.TxHash.Hex(),
		Logs:   make([]relayevm.Log, 0, len(receipt.Logs)),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, l := range receipt.Logs {
		topics := make([]string, len(l.Topics))
		for i, topic := range l.Topics {
			topics[i] = topic.Hex()
		}
		out.Logs = append(out.Logs, relayevm.Log{
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    l.Data,
		})
	}
	return out
}
