package devrelayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relay "github.com/metaswap/relay/go"
	"github.com/metaswap/relay/go/fees"
	relayhttp "github.com/metaswap/relay/go/http"
	"github.com/metaswap/relay/go/mechanisms/evm"
	evmsigners "github.com/metaswap/relay/go/signers/evm"
	"github.com/metaswap/relay/go/types"
)

const (
	userKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	otherKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

	router   = "0x1111111111111111111111111111111111111111"
	factory  = "0x4444444444444444444444444444444444444444"
	feeToken = "0x2222222222222222222222222222222222222222"
	pair     = "0x3333333333333333333333333333333333333333"
	tokenA   = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenB   = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"

	chainID = 31337
)

// chain is an in-memory router that executes executeMetaTransaction calls
type chain struct {
	mu       sync.Mutex
	nonces   map[common.Address]*big.Int
	receipts map[string]*evm.TransactionReceipt
	revert   bool
	sent     int
}

func newChain() *chain {
	return &chain{
		nonces:   make(map[common.Address]*big.Int),
		receipts: make(map[string]*evm.TransactionReceipt),
	}
}

func (c *chain) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch functionName {
	case evm.FunctionDecimals:
		return uint8(6), nil
	case evm.FunctionNonces:
		if n, ok := c.nonces[args[0].(common.Address)]; ok {
			return new(big.Int).Set(n), nil
		}
		return big.NewInt(0), nil
	case evm.FunctionMetaEnabled:
		return true, nil
	case evm.FunctionGetPair:
		return common.HexToAddress(pair), nil
	}
	return nil, fmt.Errorf("unexpected call %s", functionName)
}

func (c *chain) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(chainID), nil
}

func (c *chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *chain) BlockNumber(ctx context.Context) (uint64, error) {
	return 100, nil
}

func (c *chain) SendTransaction(ctx context.Context, tx evm.TransactionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	method, args, err := evm.DecodeRouterCall(tx.Data)
	if err != nil {
		return "", err
	}
	if method != evm.FunctionExecuteMetaTransaction {
		return "", fmt.Errorf("unexpected method %s", method)
	}
	from := args[0].(common.Address)
	nonce := args[4].(*big.Int)

	c.sent++
	hash := crypto.Keccak256Hash(tx.Data, big.NewInt(int64(c.sent)).Bytes()).Hex()
	receipt := &evm.TransactionReceipt{Status: evm.TxStatusFailed, BlockNumber: 100, TxHash: hash}
	if !c.revert {
		topic, _ := evm.MetaTransactionExecutedTopic()
		receipt.Status = evm.TxStatusSuccess
		receipt.Logs = []evm.Log{{
			Address: evm.NormalizeAddress(router),
			Topics:  []string{topic.Hex(), common.BytesToHash(from.Bytes()).Hex(), common.BigToHash(nonce).Hex()},
		}}
		c.nonces[from] = new(big.Int).Add(nonce, big.NewInt(1))
	}
	c.receipts[hash] = receipt
	return hash, nil
}

func (c *chain) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

func (c *chain) setRevert(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revert = v
}

func (c *chain) setNonce(user string, n *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == nil {
		delete(c.nonces, common.HexToAddress(user))
		return
	}
	c.nonces[common.HexToAddress(user)] = n
}

func (c *chain) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// lyingSigner claims the user's address but signs with another key
type lyingSigner struct {
	evm.ClientEvmSigner
	claimed string
}

func (s lyingSigner) Address() string { return s.claimed }

func startRelayer(t *testing.T, c *chain) *httptest.Server {
	t.Helper()
	srv, err := New(Config{
		ChainID:  big.NewInt(chainID),
		Router:   router,
		Executor: &ChainExecutor{Provider: c, Router: router, GasOverhead: 50_000},
		Nonces:   c,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, c *chain, url string, signer evm.ClientEvmSigner) *relay.Client {
	t.Helper()
	session, err := relay.Init(context.Background(), relay.InitOptions{
		Provider:    c,
		Environment: "dev",
		Endpoints:   relayhttp.EndpointTable{"dev": {chainID: url}},
		Router:      router,
		Factory:     factory,
		FeeToken:    feeToken,
	})
	require.NoError(t, err)
	estimator, err := fees.NewEstimator(map[uint64]fees.Policy{chainID: fees.Waive()})
	require.NoError(t, err)
	client, err := relay.NewClient(session, signer, relay.WithFeeEstimator(estimator))
	require.NoError(t, err)
	return client
}

func swap() relay.SwapExactInParams {
	return relay.SwapExactInParams{
		AmountIn:     big.NewInt(1_000),
		AmountOutMin: big.NewInt(900),
		Path:         []string{tokenA, tokenB},
		Deadline:     big.NewInt(1_900_000_000),
	}
}

func userSigner(t *testing.T, key string) *evmsigners.ClientSigner {
	t.Helper()
	signer, err := evmsigners.NewClientSignerFromPrivateKey(key)
	require.NoError(t, err)
	return signer
}

func TestRelayEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newChain()
	ts := startRelayer(t, c)
	client := newClient(t, c, ts.URL, userSigner(t, userKey))

	resp, err := client.SwapExactTokensForTokens(ctx, swap())
	require.NoError(t, err)
	assert.True(t, resp.Result.Success, resp.Result.ErrorMessage)
	assert.NoError(t, resp.Validate())

	t.Run("next request uses the advanced nonce", func(t *testing.T) {
		resp, err := client.SwapExactTokensForTokens(ctx, swap())
		require.NoError(t, err)
		assert.True(t, resp.Result.Success, resp.Result.ErrorMessage)
		assert.Equal(t, 2, c.sentCount())
	})

	t.Run("reverted execution is a failure", func(t *testing.T) {
		c.setRevert(true)
		defer c.setRevert(false)

		resp, err := client.SwapExactTokensForTokens(ctx, swap())
		require.NoError(t, err)
		assert.False(t, resp.Result.Success)
		assert.Contains(t, resp.Result.ErrorMessage, "reverted")
		assert.Empty(t, resp.Result.TxnHash)
	})
}

func TestRelayRejectsForgedSignature(t *testing.T) {
	c := newChain()
	ts := startRelayer(t, c)
	user := userSigner(t, userKey)

	// sign as another key while claiming the user's address; the client's own
	// check would stop this, so post the request directly
	forger := lyingSigner{ClientEvmSigner: userSigner(t, otherKey), claimed: user.Address()}
	msg, err := evm.BuildForwarderMessage(evm.ForwarderParams{
		From:   forger.Address(),
		Router: router,
		Method: evm.FunctionSwapExactTokensForTokens,
		Args: []interface{}{
			big.NewInt(1_000), big.NewInt(900),
			[]common.Address{common.HexToAddress(tokenA), common.HexToAddress(tokenB)},
			common.HexToAddress(user.Address()), big.NewInt(1_900_000_000),
		},
		Gas:   200_000,
		Nonce: big.NewInt(0),
		Fee:   evm.FeeQuote{Token: feeToken, Decimals: 6, MaxTokenFee: big.NewInt(0)},
	})
	require.NoError(t, err)
	td := evm.NewForwarderTypedData(evm.ForwarderDomain(evm.DefaultForwarderDomainName, big.NewInt(chainID), router), msg)
	sig, err := evm.SignTypedData(context.Background(), forger, td)
	require.NoError(t, err)

	resp := post(t, ts.URL, types.NewRelayRequest(evm.FunctionSwapExactTokensForTokens,
		fmt.Sprint(chainID), td, sig.VString(), sig.RHex(), sig.SHex()))
	assert.False(t, resp.Result.Success)
	assert.Contains(t, resp.Result.ErrorMessage, "signature mismatch")
	assert.Equal(t, 0, c.sentCount())

	t.Run("operation must match call data", func(t *testing.T) {
		sig, err := evm.SignTypedData(context.Background(), user, td)
		require.NoError(t, err)
		resp := post(t, ts.URL, types.NewRelayRequest(evm.FunctionAddLiquidity,
			fmt.Sprint(chainID), td, sig.VString(), sig.RHex(), sig.SHex()))
		assert.False(t, resp.Result.Success)
		assert.Contains(t, resp.Result.ErrorMessage, "does not match call data")
	})

	t.Run("stale nonce is rejected", func(t *testing.T) {
		c.setNonce(user.Address(), big.NewInt(3))
		defer c.setNonce(user.Address(), nil)

		sig, err := evm.SignTypedData(context.Background(), user, td)
		require.NoError(t, err)
		resp := post(t, ts.URL, types.NewRelayRequest(evm.FunctionSwapExactTokensForTokens,
			fmt.Sprint(chainID), td, sig.VString(), sig.RHex(), sig.SHex()))
		assert.False(t, resp.Result.Success)
		assert.Contains(t, resp.Result.ErrorMessage, "invalid nonce")
	})

	t.Run("wrong chain is rejected", func(t *testing.T) {
		resp := post(t, ts.URL, types.NewRelayRequest(evm.FunctionSwapExactTokensForTokens,
			"1", td, sig.VString(), sig.RHex(), sig.SHex()))
		assert.Contains(t, resp.Result.ErrorMessage, "unsupported chain")
	})
}

func TestClientStopsForgedSignatureBeforeRelayer(t *testing.T) {
	c := newChain()
	ts := startRelayer(t, c)
	user := userSigner(t, userKey)
	client := newClient(t, c, ts.URL, lyingSigner{ClientEvmSigner: userSigner(t, otherKey), claimed: user.Address()})

	_, err := client.SwapExactTokensForTokens(context.Background(), swap())
	assert.ErrorIs(t, err, relay.ErrSignatureMismatch)
	assert.Equal(t, 0, c.sentCount())
}

func TestMalformedRequests(t *testing.T) {
	ts := startRelayer(t, newChain())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"eth_call","params":[]}`},
		{"short params", `{"jsonrpc":"2.0","id":1,"method":"/v2/metaTx/addLiquidity","params":["31337"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Post(ts.URL, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)

			var resp types.Response
			require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
			assert.False(t, resp.Result.Success)
			assert.NotEmpty(t, resp.Result.ErrorMessage)
		})
	}
}

func TestNewValidatesConfig(t *testing.T) {
	exec := &ChainExecutor{}
	_, err := New(Config{Router: router, Executor: exec})
	assert.Error(t, err)
	_, err = New(Config{ChainID: big.NewInt(1), Router: "nope", Executor: exec})
	assert.Error(t, err)
	_, err = New(Config{ChainID: big.NewInt(1), Router: router})
	assert.Error(t, err)

	srv, err := New(Config{ChainID: big.NewInt(1), Router: router, Executor: exec})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	_, err = uuid.Parse(rec.Header().Get(HeaderRequestID))
	assert.NoError(t, err)
}

func post(t *testing.T, url string, req types.RelayRequest) *types.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp types.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	return &resp
}

func TestDryRunExecutorSubmitsNothing(t *testing.T) {
	c := newChain()
	srv, err := New(Config{ChainID: big.NewInt(chainID), Router: router, Executor: DryRunExecutor{}, Nonces: c})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := newClient(t, c, ts.URL, userSigner(t, userKey)).SwapExactTokensForTokens(context.Background(), swap())
	require.NoError(t, err)
	assert.False(t, resp.Result.Success)
	assert.Contains(t, resp.Result.ErrorMessage, "dry run")
	assert.Equal(t, 0, c.sentCount())
}
