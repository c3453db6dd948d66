// Package devrelayer is a local relayer speaking the /v2/metaTx JSON-RPC
// contract. It checks every request the way a production relayer would
// (chain, router domain, signer recovery, operation and nonce) and executes
// accepted requests through an Executor.
package devrelayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// DefaultExecuteTimeout bounds one execution
const DefaultExecuteTimeout = 60 * time.Second

// HeaderRequestID carries the id the relayer assigned to a request
const HeaderRequestID = "X-Request-Id"

// Executor runs an accepted meta-transaction and reports the outcome
type Executor interface {
	Execute(ctx context.Context, msg evm.ForwarderMessage, sig evm.Signature) (*types.Response, error)
}

// Config configures the relayer
type Config struct {
	// ChainID is the only chain accepted (required)
	ChainID *big.Int

	// Router is the forwarder contract messages must be bound to (required)
	Router string

	// Executor runs accepted requests (required)
	Executor Executor

	// Nonces, when set, rejects messages whose nonce is not the router's current nonce
	Nonces evm.ChainReader

	// ExecuteTimeout overrides DefaultExecuteTimeout
	ExecuteTimeout time.Duration

	// ReplayTTL overrides DefaultReplayTTL
	ReplayTTL time.Duration

	Logger zerolog.Logger
}

// Server is the gin-backed relayer
type Server struct {
	cfg    Config
	engine *gin.Engine
	cache  *ReplayCache
}

// New creates a relayer
func New(cfg Config) (*Server, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if !evm.IsValidAddress(cfg.Router) {
		return nil, fmt.Errorf("invalid router address %q", cfg.Router)
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.ExecuteTimeout == 0 {
		cfg.ExecuteTimeout = DefaultExecuteTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, engine: gin.New(), cache: NewReplayCache(cfg.ReplayTTL)}
	s.engine.Use(gin.Recovery(), requestID())

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"chainId": cfg.ChainID.String(),
			"router":  evm.NormalizeAddress(cfg.Router),
		})
	})
	s.engine.POST("/", s.handleRelay)
	s.engine.POST("/rpc", s.handleRelay)

	return s, nil
}

// requestID tags every request with a fresh id and a logger carrying it
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header(HeaderRequestID, id)
		c.Set(HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) log(c *gin.Context) *zerolog.Logger {
	l := s.cfg.Logger.With().Str("requestId", c.GetString(HeaderRequestID)).Logger()
	return &l
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleRelay(c *gin.Context) {
	var req types.RelayRequest
	if err := c.BindJSON(&req); err != nil {
		s.reject(c, http.StatusBadRequest, "invalid request body")
		return
	}

	operation, ok := types.OperationFromMethod(req.Method)
	if !ok {
		s.reject(c, http.StatusBadRequest, fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	if len(req.Params) != 5 {
		s.reject(c, http.StatusBadRequest, fmt.Sprintf("expected 5 params, got %d", len(req.Params)))
		return
	}
	key, err := RequestKey(req.Method, req.Params)
	if err != nil {
		s.reject(c, http.StatusBadRequest, "invalid params")
		return
	}

	ctx := c.Request.Context()
	for {
		status, cached, done := s.cache.CheckAndMark(key)
		switch status {
		case CacheHit:
			s.replay(c, req.ID, cached)
			return
		case CacheInFlight:
			result, err := s.cache.Wait(ctx, key, done)
			if err != nil {
				s.reject(c, http.StatusOK, err.Error())
				return
			}
			if result != nil {
				s.replay(c, req.ID, result)
				return
			}
			continue
		}

		resp := s.execute(ctx, s.log(c), operation, req.Params)
		if resp.Result.Success {
			s.cache.Complete(key, resp, done)
		} else {
			s.cache.Fail(key, done)
		}
		out := *resp
		out.ID = req.ID
		c.JSON(http.StatusOK, &out)
		return
	}
}

// execute checks and runs one request; failures are returned as responses
func (s *Server) execute(ctx context.Context, log *zerolog.Logger, operation string, params []interface{}) *types.Response {
	msg, sig, err := s.check(ctx, operation, params)
	if err != nil {
		log.Warn().Str("operation", operation).Msg(err.Error())
		return types.NewFailureResponse(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExecuteTimeout)
	defer cancel()

	resp, err := s.cfg.Executor.Execute(ctx, msg, sig)
	if err != nil {
		log.Warn().Str("operation", operation).Err(err).Msg("execution failed")
		return types.NewFailureResponse(err.Error())
	}
	resp = resp.Normalize()

	log.Info().
		Str("operation", operation).
		Str("from", msg.From).
		Str("nonce", msg.Nonce.String()).
		Bool("success", resp.Result.Success).
		Str("txnHash", resp.Result.TxnHash).
		Msg("meta-transaction executed")
	return resp
}

func (s *Server) replay(c *gin.Context, id int, cached *types.Response) {
	s.log(c).Info().Str("txnHash", cached.Result.TxnHash).Msg("replayed cached execution")
	out := *cached
	out.ID = id
	c.JSON(http.StatusOK, &out)
}

// check validates a request and returns the authorized message
func (s *Server) check(ctx context.Context, operation string, params []interface{}) (evm.ForwarderMessage, evm.Signature, error) {
	chainID, _ := params[0].(string)
	if chainID != s.cfg.ChainID.String() {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("unsupported chain %q", chainID)
	}

	raw, err := json.Marshal(params[1])
	if err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("invalid typed data: %w", err)
	}
	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("invalid typed data: %w", err)
	}

	domain := evm.DomainFromTypedData(typedData)
	if domain.ChainID == nil || domain.ChainID.Cmp(s.cfg.ChainID) != 0 {
		return evm.ForwarderMessage{}, evm.Signature{}, errors.New("domain chain id does not match")
	}
	if !strings.EqualFold(evm.NormalizeAddress(domain.VerifyingContract), evm.NormalizeAddress(s.cfg.Router)) {
		return evm.ForwarderMessage{}, evm.Signature{}, errors.New("domain is not bound to this router")
	}

	msg, err := evm.ForwarderMessageFromTypedData(typedData)
	if err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, err
	}
	if !strings.EqualFold(msg.To, evm.NormalizeAddress(s.cfg.Router)) {
		return evm.ForwarderMessage{}, evm.Signature{}, errors.New("message target is not this router")
	}

	v, _ := params[2].(string)
	r, _ := params[3].(string)
	sv, _ := params[4].(string)
	sig, err := evm.ParseSignature(v, r, sv)
	if err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, err
	}
	signer, err := evm.RecoverTypedDataSigner(typedData, sig)
	if err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("signature could not be recovered: %w", err)
	}
	if !strings.EqualFold(signer.Hex(), msg.From) {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("signature mismatch: recovered %s, message from %s", signer.Hex(), msg.From)
	}

	method, _, err := evm.DecodeRouterCall(msg.Data)
	if err != nil {
		return evm.ForwarderMessage{}, evm.Signature{}, err
	}
	if method != operation {
		return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("method %s does not match call data %s", operation, method)
	}

	if s.cfg.Nonces != nil {
		current, err := evm.ReadRouterNonce(ctx, s.cfg.Nonces, s.cfg.Router, msg.From)
		if err != nil {
			return evm.ForwarderMessage{}, evm.Signature{}, err
		}
		if current.Cmp(msg.Nonce) != 0 {
			return evm.ForwarderMessage{}, evm.Signature{}, fmt.Errorf("invalid nonce %s, expected %s", msg.Nonce, current)
		}
	}
	return msg, sig, nil
}

func (s *Server) reject(c *gin.Context, status int, reason string) {
	s.log(c).Warn().Int("status", status).Msg(reason)
	c.JSON(status, types.NewFailureResponse(reason))
}

// ChainExecutor submits executeMetaTransaction from the relayer's own account
type ChainExecutor struct {
	Provider evm.Provider
	Router   string

	// GasOverhead is added to the signed gas for the forwarder's own work
	GasOverhead uint64
}

// Execute implements Executor
func (e *ChainExecutor) Execute(ctx context.Context, msg evm.ForwarderMessage, sig evm.Signature) (*types.Response, error) {
	data, err := evm.EncodeExecuteMetaTransaction(msg, sig)
	if err != nil {
		return nil, err
	}

	gas := e.GasOverhead
	if msg.Gas != nil && msg.Gas.IsUint64() {
		gas += msg.Gas.Uint64()
	}

	hash, err := e.Provider.SendTransaction(ctx, evm.TransactionRequest{
		To:       e.Router,
		Data:     data,
		Value:    big.NewInt(0),
		GasLimit: gas,
	})
	if err != nil {
		return types.NewFailureResponse(err.Error()), nil
	}

	receipt, err := e.Provider.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return types.NewFailureResponse(err.Error()), nil
	}
	if receipt.Status != evm.TxStatusSuccess {
		return types.NewFailureResponse(fmt.Sprintf("transaction %s reverted", hash)), nil
	}
	return types.NewSuccessResponse(hash), nil
}

// DryRunExecutor accepts checked requests without submitting them
type DryRunExecutor struct{}

// Execute implements Executor
func (DryRunExecutor) Execute(ctx context.Context, msg evm.ForwarderMessage, sig evm.Signature) (*types.Response, error) {
	return types.NewFailureResponse(fmt.Sprintf("dry run: %s nonce %s accepted but not submitted", msg.From, msg.Nonce)), nil
}
