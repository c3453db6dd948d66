package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type keySigner struct {
	key *ecdsa.PrivateKey
}

func newKeySigner(t *testing.T) *keySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &keySigner{key: key}
}

func (s *keySigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *keySigner) SignTypedData(
	ctx context.Context,
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

type mockReader struct {
	pairs map[[2]common.Address]common.Address
	calls int
	err   error
}

func (m *mockReader) ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if functionName != FunctionGetPair {
		return nil, errors.New("unexpected call " + functionName)
	}
	a := args[0].(common.Address)
	b := args[1].(common.Address)
	if pair, ok := m.pairs[[2]common.Address{a, b}]; ok {
		return pair, nil
	}
	if pair, ok := m.pairs[[2]common.Address{b, a}]; ok {
		return pair, nil
	}
	return common.Address{}, nil
}

const (
	routerAddr  = "0x1111111111111111111111111111111111111111"
	feeTokenHex = "0x2222222222222222222222222222222222222222"
	pairAddr    = "0x3333333333333333333333333333333333333333"
	tokenA      = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenB      = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	tokenC      = "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
)

func testForwarderMessage(t *testing.T, from string) ForwarderMessage {
	t.Helper()
	msg, err := BuildForwarderMessage(ForwarderParams{
		From:   from,
		Router: routerAddr,
		Method: FunctionSwapExactTokensForTokens,
		Args: []interface{}{
			big.NewInt(1000),
			big.NewInt(900),
			[]common.Address{common.HexToAddress(tokenA), common.HexToAddress(tokenB)},
			common.HexToAddress(from),
			big.NewInt(1700000000),
		},
		Gas:   SwapBaseGas,
		Nonce: big.NewInt(4),
		Fee:   FeeQuote{Token: feeTokenHex, Decimals: 6, MaxTokenFee: big.NewInt(12345)},
	})
	require.NoError(t, err)
	return msg
}

func TestBuildForwarderMessage(t *testing.T) {
	signer := newKeySigner(t)
	msg := testForwarderMessage(t, signer.Address())

	assert.Equal(t, NormalizeAddress(routerAddr), msg.To)
	assert.Equal(t, "4", msg.Nonce.String())
	assert.Equal(t, "12345", msg.MaxTokenFee.String())
	assert.Equal(t, new(big.Int).SetUint64(SwapBaseGas), msg.Gas)

	method, args, err := DecodeRouterCall(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, FunctionSwapExactTokensForTokens, method)
	require.Len(t, args, 5)
	assert.Equal(t, big.NewInt(1000), args[0])

	t.Run("rejects missing nonce", func(t *testing.T) {
		_, err := BuildForwarderMessage(ForwarderParams{
			From: signer.Address(), Router: routerAddr, Method: FunctionMetaEnabled,
			Fee: FeeQuote{Token: feeTokenHex, MaxTokenFee: big.NewInt(0)},
		})
		assert.Error(t, err)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := BuildForwarderMessage(ForwarderParams{
			From: signer.Address(), Router: routerAddr, Method: "doesNotExist", Nonce: big.NewInt(0),
			Fee: FeeQuote{Token: feeTokenHex, MaxTokenFee: big.NewInt(0)},
		})
		assert.Error(t, err)
	})

	t.Run("rejects negative fee", func(t *testing.T) {
		_, err := BuildForwarderMessage(ForwarderParams{
			From: signer.Address(), Router: routerAddr, Method: FunctionMetaEnabled, Nonce: big.NewInt(0),
			Fee: FeeQuote{Token: feeTokenHex, MaxTokenFee: big.NewInt(-1)},
		})
		assert.Error(t, err)
	})
}

func TestForwarderTypedData(t *testing.T) {
	signer := newKeySigner(t)
	msg := testForwarderMessage(t, signer.Address())
	domain := ForwarderDomain(DefaultForwarderDomainName, big.NewInt(137), routerAddr)
	td := NewForwarderTypedData(domain, msg)

	assert.Equal(t, PrimaryTypeForwarder, td.PrimaryType)
	assert.Contains(t, td.Types, EIP712DomainType)
	assert.Contains(t, td.Types, PrimaryTypeForwarder)
	assert.Equal(t, NormalizeAddress(routerAddr), td.Domain.VerifyingContract)
	assert.Equal(t, "12345", td.Message["maxTokenFee"])

	t.Run("hash survives a JSON round trip", func(t *testing.T) {
		before, err := HashTypedDataEnvelope(td)
		require.NoError(t, err)

		raw, err := json.Marshal(td)
		require.NoError(t, err)
		var decoded apitypes.TypedData
		require.NoError(t, json.Unmarshal(raw, &decoded))

		after, err := HashTypedDataEnvelope(decoded)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("domain without version omits the field", func(t *testing.T) {
		d := TypedDataDomain{Name: "x", ChainID: big.NewInt(1), VerifyingContract: routerAddr}
		fields := DomainTypes(d)
		for _, f := range fields {
			assert.NotEqual(t, "version", f.Name)
		}
		_, err := HashTypedData(d, GetForwarderEIP712Types(d), PrimaryTypeForwarder, msg.ToMessage())
		assert.NoError(t, err)
	})
}

func TestSignAndVerifyTypedData(t *testing.T) {
	ctx := context.Background()
	signer := newKeySigner(t)
	msg := testForwarderMessage(t, signer.Address())
	domain := ForwarderDomain(DefaultForwarderDomainName, big.NewInt(137), routerAddr)
	td := NewForwarderTypedData(domain, msg)

	sig, err := SignTypedData(ctx, signer, td)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)

	ok, err := VerifyTypedDataSignature(td, sig, signer.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("other signer does not verify", func(t *testing.T) {
		other := newKeySigner(t)
		ok, err := VerifyTypedDataSignature(td, sig, other.Address())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	mutations := map[string]func(d *TypedDataDomain, m *ForwarderMessage){
		"domain name":        func(d *TypedDataDomain, m *ForwarderMessage) { d.Name = "Other" },
		"domain chain":       func(d *TypedDataDomain, m *ForwarderMessage) { d.ChainID = big.NewInt(1) },
		"verifying contract": func(d *TypedDataDomain, m *ForwarderMessage) { d.VerifyingContract = NormalizeAddress(pairAddr) },
		"domain version":     func(d *TypedDataDomain, m *ForwarderMessage) { d.Version = "2" },
		"from":               func(d *TypedDataDomain, m *ForwarderMessage) { m.From = NormalizeAddress(tokenC) },
		"to":                 func(d *TypedDataDomain, m *ForwarderMessage) { m.To = NormalizeAddress(pairAddr) },
		"value":              func(d *TypedDataDomain, m *ForwarderMessage) { m.Value = big.NewInt(1) },
		"gas":                func(d *TypedDataDomain, m *ForwarderMessage) { m.Gas = big.NewInt(1) },
		"nonce":              func(d *TypedDataDomain, m *ForwarderMessage) { m.Nonce = big.NewInt(5) },
		"data":               func(d *TypedDataDomain, m *ForwarderMessage) { m.Data = append([]byte{}, m.Data[:len(m.Data)-1]...) },
		"fee token":          func(d *TypedDataDomain, m *ForwarderMessage) { m.FeeToken = NormalizeAddress(tokenA) },
		"max token fee":      func(d *TypedDataDomain, m *ForwarderMessage) { m.MaxTokenFee = big.NewInt(12346) },
	}
	for name, mutate := range mutations {
		t.Run("mutated "+name+" fails verification", func(t *testing.T) {
			d := domain
			m := msg
			mutate(&d, &m)
			ok, err := VerifyTypedDataSignature(NewForwarderTypedData(d, m), sig, signer.Address())
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPermitTypedData(t *testing.T) {
	ctx := context.Background()
	signer := newKeySigner(t)

	permit, err := BuildPermitMessage(signer.Address(), routerAddr, big.NewInt(500), big.NewInt(0), big.NewInt(1700000000))
	require.NoError(t, err)

	domain := PermitDomain("Uniswap V2", big.NewInt(137), pairAddr)
	td := NewPermitTypedData(domain, permit)
	assert.Equal(t, PrimaryTypePermit, td.PrimaryType)
	assert.Equal(t, NormalizeAddress(pairAddr), td.Domain.VerifyingContract)

	sig, err := SignTypedData(ctx, signer, td)
	require.NoError(t, err)

	ok, err := VerifyTypedDataSignature(td, sig, signer.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("signature is bound to the pair contract", func(t *testing.T) {
		wrong := NewPermitTypedData(PermitDomain("Uniswap V2", big.NewInt(137), routerAddr), permit)
		ok, err := VerifyTypedDataSignature(wrong, sig, signer.Address())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects negative value", func(t *testing.T) {
		_, err := BuildPermitMessage(signer.Address(), routerAddr, big.NewInt(-1), big.NewInt(0), big.NewInt(1))
		assert.Error(t, err)
	})
}

func TestSplitSignature(t *testing.T) {
	raw := make([]byte, 65)
	for i := 0; i < 64; i++ {
		raw[i] = byte(i)
	}

	t.Run("normalizes recovery id", func(t *testing.T) {
		raw[64] = 1
		sig, err := SplitSignature(raw)
		require.NoError(t, err)
		assert.Equal(t, uint8(28), sig.V)
		assert.Equal(t, "28", sig.VString())
		assert.Equal(t, byte(0), sig.R[0])
		assert.Equal(t, byte(32), sig.S[0])
		assert.True(t, strings.HasPrefix(sig.RHex(), "0x"))
		assert.Len(t, sig.SHex(), 66)
	})

	t.Run("round trips bytes", func(t *testing.T) {
		raw[64] = 27
		sig, err := SplitSignature(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, sig.Bytes())
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := SplitSignature(raw[:64])
		assert.Error(t, err)
	})

	t.Run("rejects bad recovery id", func(t *testing.T) {
		raw[64] = 40
		_, err := SplitSignature(raw)
		assert.Error(t, err)
	})

	t.Run("marshals as hex components", func(t *testing.T) {
		raw[64] = 27
		sig, err := SplitSignature(raw)
		require.NoError(t, err)
		out, err := json.Marshal(sig)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"v":27`)
		assert.Contains(t, string(out), `"r":"0x0001`)
	})
}

func TestPathExists(t *testing.T) {
	ctx := context.Background()
	a, b, c := common.HexToAddress(tokenA), common.HexToAddress(tokenB), common.HexToAddress(tokenC)
	reader := &mockReader{pairs: map[[2]common.Address]common.Address{
		{a, b}: common.HexToAddress(pairAddr),
	}}

	tests := []struct {
		name string
		path []string
		want bool
	}{
		{"empty path", nil, false},
		{"single token", []string{tokenA}, false},
		{"existing pair", []string{tokenA, tokenB}, true},
		{"reversed pair", []string{tokenB, tokenA}, true},
		{"missing final hop", []string{tokenA, tokenB, tokenC}, false},
		{"missing first hop", []string{tokenC, tokenA, tokenB}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathExists(ctx, reader, routerAddr, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("three hop path with every pair", func(t *testing.T) {
		full := &mockReader{pairs: map[[2]common.Address]common.Address{
			{a, b}: common.HexToAddress(pairAddr),
			{b, c}: common.HexToAddress(routerAddr),
		}}
		got, err := PathExists(ctx, full, routerAddr, []string{tokenA, tokenB, tokenC})
		require.NoError(t, err)
		assert.True(t, got)
		assert.Equal(t, 2, full.calls)
	})

	t.Run("read errors propagate", func(t *testing.T) {
		_, err := PathExists(ctx, &mockReader{err: errors.New("rpc down")}, routerAddr, []string{tokenA, tokenB})
		assert.ErrorContains(t, err, "rpc down")
	})
}

func TestSwapGasLimit(t *testing.T) {
	assert.Equal(t, SwapBaseGas, SwapGasLimit(2))
	assert.Equal(t, SwapBaseGas+SwapPerHopGas, SwapGasLimit(3))
	assert.Equal(t, SwapBaseGas+3*SwapPerHopGas, SwapGasLimit(5))
}

func TestMetaTransactionExecutedTopic(t *testing.T) {
	topic, err := MetaTransactionExecutedTopic()
	require.NoError(t, err)
	want := crypto.Keccak256Hash([]byte("MetaTransactionExecuted(address,uint256,address,uint256)"))
	assert.Equal(t, want, topic)
}

func TestForwarderMessageFromTypedData(t *testing.T) {
	signer := newKeySigner(t)
	msg := testForwarderMessage(t, signer.Address())
	td := NewForwarderTypedData(ForwarderDomain(DefaultForwarderDomainName, big.NewInt(137), routerAddr), msg)

	raw, err := json.Marshal(td)
	require.NoError(t, err)
	var decoded apitypes.TypedData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, err := ForwarderMessageFromTypedData(decoded)
	require.NoError(t, err)
	assert.Equal(t, NormalizeAddress(msg.From), got.From)
	assert.Equal(t, msg.To, got.To)
	assert.Equal(t, NormalizeAddress(feeTokenHex), got.FeeToken)
	assert.Equal(t, msg.Data, got.Data)
	assert.Equal(t, 0, msg.Nonce.Cmp(got.Nonce))
	assert.Equal(t, 0, msg.Gas.Cmp(got.Gas))
	assert.Equal(t, 0, msg.MaxTokenFee.Cmp(got.MaxTokenFee))
	assert.Equal(t, 0, got.Value.Sign())

	tests := []struct {
		name   string
		mutate func(td *apitypes.TypedData)
	}{
		{"permit envelope", func(td *apitypes.TypedData) { td.PrimaryType = PrimaryTypePermit }},
		{"bad address", func(td *apitypes.TypedData) { td.Message["from"] = "0x1234" }},
		{"negative nonce", func(td *apitypes.TypedData) { td.Message["nonce"] = "-1" }},
		{"numeric gas", func(td *apitypes.TypedData) { td.Message["gas"] = float64(21000) }},
		{"bad data", func(td *apitypes.TypedData) { td.Message["data"] = "0xzz" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := NewForwarderTypedData(ForwarderDomain(DefaultForwarderDomainName, big.NewInt(137), routerAddr), msg)
			tt.mutate(&bad)
			_, err := ForwarderMessageFromTypedData(bad)
			assert.Error(t, err)
		})
	}
}

func TestParseSignature(t *testing.T) {
	raw := make([]byte, 65)
	for i := 0; i < 64; i++ {
		raw[i] = byte(i + 1)
	}
	raw[64] = 28
	want, err := SplitSignature(raw)
	require.NoError(t, err)

	got, err := ParseSignature(want.VString(), want.RHex(), want.SHex())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for name, in := range map[string][3]string{
		"v not decimal": {"0x1c", want.RHex(), want.SHex()},
		"v too large":   {"300", want.RHex(), want.SHex()},
		"short r":       {"28", "0x01", want.SHex()},
		"s not hex":     {"28", want.RHex(), "zz"},
		"bad v":         {"29", want.RHex(), want.SHex()},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSignature(in[0], in[1], in[2])
			assert.Error(t, err)
		})
	}
}

func TestEncodeExecuteMetaTransaction(t *testing.T) {
	ctx := context.Background()
	signer := newKeySigner(t)
	msg := testForwarderMessage(t, signer.Address())
	td := NewForwarderTypedData(ForwarderDomain(DefaultForwarderDomainName, big.NewInt(137), routerAddr), msg)
	sig, err := SignTypedData(ctx, signer, td)
	require.NoError(t, err)

	data, err := EncodeExecuteMetaTransaction(msg, sig)
	require.NoError(t, err)

	method, args, err := DecodeRouterCall(data)
	require.NoError(t, err)
	assert.Equal(t, FunctionExecuteMetaTransaction, method)
	require.Len(t, args, 11)
	assert.Equal(t, common.HexToAddress(signer.Address()), args[0])
	assert.Equal(t, common.HexToAddress(routerAddr), args[1])
	assert.Equal(t, 0, msg.Nonce.Cmp(args[4].(*big.Int)))
	assert.Equal(t, msg.Data, args[5])
	assert.Equal(t, sig.V, args[8])
	assert.Equal(t, sig.R, args[9])
	assert.Equal(t, sig.S, args[10])

	inner, _, err := DecodeRouterCall(args[5].([]byte))
	require.NoError(t, err)
	assert.Equal(t, FunctionSwapExactTokensForTokens, inner)
}
