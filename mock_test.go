package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/metaswap/relay/go/http"
	"github.com/metaswap/relay/go/mechanisms/evm"
	evmsigners "github.com/metaswap/relay/go/signers/evm"
	"github.com/metaswap/relay/go/types"
)

const (
	testKey      = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAccount  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherAccount = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	routerAddr  = "0x1111111111111111111111111111111111111111"
	factoryAddr = "0x4444444444444444444444444444444444444444"
	feeTokenA   = "0x2222222222222222222222222222222222222222"
	feeTokenB   = "0x5555555555555555555555555555555555555555"
	pairAB      = "0x3333333333333333333333333333333333333333"
	tokenA      = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenB      = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	tokenC      = "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"

	testChainID = 80002
)

// mockChain is an in-memory evm.Provider keyed on ABI function names
type mockChain struct {
	mu sync.Mutex

	chainID     *big.Int
	gasPrice    *big.Int
	metaEnabled bool
	decimals    map[string]uint8
	pairs       map[[2]common.Address]common.Address
	nonces      map[common.Address]*big.Int
	pairNonces  map[common.Address]*big.Int
	pairName    string
	head        uint64

	sendErr  error
	sent     []evm.TransactionRequest
	receipts map[string]*evm.TransactionReceipt
	calls    map[string]int
}

func newMockChain() *mockChain {
	return &mockChain{
		chainID:     big.NewInt(testChainID),
		gasPrice:    big.NewInt(30_000_000_000),
		metaEnabled: true,
		decimals: map[string]uint8{
			evm.NormalizeAddress(feeTokenA): 6,
			evm.NormalizeAddress(feeTokenB): 18,
		},
		pairs: map[[2]common.Address]common.Address{
			{common.HexToAddress(tokenA), common.HexToAddress(tokenB)}: common.HexToAddress(pairAB),
		},
		nonces:     make(map[common.Address]*big.Int),
		pairNonces: make(map[common.Address]*big.Int),
		pairName:   "MetaSwap LP",
		head:       10,
		receipts:   make(map[string]*evm.TransactionReceipt),
		calls:      make(map[string]int),
	}
}

func (m *mockChain) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[functionName]++

	switch functionName {
	case evm.FunctionDecimals:
		d, ok := m.decimals[evm.NormalizeAddress(address)]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return d, nil
	case evm.FunctionGetPair:
		a, b := args[0].(common.Address), args[1].(common.Address)
		if pair, ok := m.pairs[[2]common.Address{a, b}]; ok {
			return pair, nil
		}
		if pair, ok := m.pairs[[2]common.Address{b, a}]; ok {
			return pair, nil
		}
		return common.Address{}, nil
	case evm.FunctionNonces:
		user := args[0].(common.Address)
		table := m.pairNonces
		if evm.NormalizeAddress(address) == evm.NormalizeAddress(routerAddr) {
			table = m.nonces
		}
		if n, ok := table[user]; ok {
			return new(big.Int).Set(n), nil
		}
		return big.NewInt(0), nil
	case evm.FunctionMetaEnabled:
		return m.metaEnabled, nil
	case evm.FunctionName:
		return m.pairName, nil
	}
	return nil, fmt.Errorf("unexpected call %s", functionName)
}

func (m *mockChain) GetChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.chainID), nil
}

func (m *mockChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["gasPrice"]++
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *mockChain) BlockNumber(ctx context.Context) (uint64, error) {
	return m.head, nil
}

func (m *mockChain) SendTransaction(ctx context.Context, tx evm.TransactionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["sendTransaction"]++
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, tx)
	hash := cryptoHashForSend(tx.Data, len(m.sent))
	if _, ok := m.receipts[hash]; !ok {
		m.receipts[hash] = &evm.TransactionReceipt{Status: evm.TxStatusSuccess, BlockNumber: m.head, TxHash: hash}
	}
	return hash, nil
}

func (m *mockChain) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return receipt, nil
}

func (m *mockChain) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// cryptoHashForSend is the hash mockChain assigns to the n-th sent transaction
func cryptoHashForSend(data []byte, n int) string {
	return crypto.Keccak256Hash(data, big.NewInt(int64(n)).Bytes()).Hex()
}

// executeMeta records what a relayer's on-chain execution would produce
func (m *mockChain) executeMeta(from common.Address, nonce *big.Int, status uint64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := crypto.Keccak256Hash(from.Bytes(), nonce.Bytes()).Hex()
	topic, _ := evm.MetaTransactionExecutedTopic()
	m.receipts[hash] = &evm.TransactionReceipt{
		Status:      status,
		BlockNumber: m.head,
		TxHash:      hash,
		Logs: []evm.Log{{
			Address: evm.NormalizeAddress(routerAddr),
			Topics: []string{
				topic.Hex(),
				common.BytesToHash(from.Bytes()).Hex(),
				common.BigToHash(nonce).Hex(),
			},
		}},
	}
	if status == evm.TxStatusSuccess {
		m.nonces[from] = new(big.Int).Add(nonce, big.NewInt(1))
	}
	return hash
}

// relayedCall is one request seen by the fake relayer
type relayedCall struct {
	Method    string
	ChainID   string
	From      string
	Nonce     string
	Data      string
	V, R, S   string
	TypedData map[string]interface{}
}

// fakeRelayer serves the relayer JSON-RPC contract over httptest
type fakeRelayer struct {
	mu     sync.Mutex
	chain  *mockChain
	calls  []relayedCall
	server *httptest.Server

	// reply overrides the default execute-and-succeed behaviour
	reply func(call relayedCall) *types.Response
}

func newFakeRelayer(t *testing.T, chain *mockChain) *fakeRelayer {
	t.Helper()
	r := &fakeRelayer{chain: chain}
	r.server = httptest.NewServer(nethttp.HandlerFunc(r.handle))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRelayer) handle(w nethttp.ResponseWriter, req *nethttp.Request) {
	var body types.RelayRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	typedData := body.Params[1].(map[string]interface{})
	message := typedData["message"].(map[string]interface{})
	call := relayedCall{
		Method:    body.Method,
		ChainID:   body.Params[0].(string),
		From:      message["from"].(string),
		Nonce:     message["nonce"].(string),
		Data:      message["data"].(string),
		V:         body.Params[2].(string),
		R:         body.Params[3].(string),
		S:         body.Params[4].(string),
		TypedData: typedData,
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	reply := r.reply
	r.mu.Unlock()

	var resp *types.Response
	if reply != nil {
		resp = reply(call)
	} else {
		nonce, _ := new(big.Int).SetString(call.Nonce, 10)
		resp = types.NewSuccessResponse(r.chain.executeMeta(common.HexToAddress(call.From), nonce, evm.TxStatusSuccess))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (r *fakeRelayer) requests() []relayedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]relayedCall(nil), r.calls...)
}

// lyingSigner claims one address but signs with another key
type lyingSigner struct {
	evm.ClientEvmSigner
	claimed string
}

func (s lyingSigner) Address() string {
	return s.claimed
}

func testSigner(t *testing.T) *evmsigners.ClientSigner {
	t.Helper()
	signer, err := evmsigners.NewClientSignerFromPrivateKey(testKey)
	require.NoError(t, err)
	return signer
}

func testSession(t *testing.T, chain *mockChain, relayerURL string) *Session {
	t.Helper()
	session, err := Init(context.Background(), InitOptions{
		Provider:    chain,
		Environment: "local",
		Endpoints:   http.EndpointTable{"local": {testChainID: relayerURL}},
		Router:      routerAddr,
		Factory:     factoryAddr,
		FeeToken:    feeTokenA,
	})
	require.NoError(t, err)
	return session
}

func testClient(t *testing.T, chain *mockChain, relayer *fakeRelayer, opts ...ClientOption) *Client {
	t.Helper()
	url := "http://127.0.0.1:0/unused"
	if relayer != nil {
		url = relayer.server.URL
	}
	client, err := NewClient(testSession(t, chain, url), testSigner(t), opts...)
	require.NoError(t, err)
	return client
}

func eqAddr(a, b string) bool {
	return strings.EqualFold(evm.NormalizeAddress(a), evm.NormalizeAddress(b))
}
