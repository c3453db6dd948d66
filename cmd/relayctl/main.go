// Command relayctl dispatches DEX operations through the meta-transaction relayer.
//
//	relayctl [-config relay.yaml] [-env .env] <command> [flags]
//
// Commands:
//
//	swap-exact-in     swapExactTokensForTokens
//	swap-exact-out    swapTokensForExactTokens
//	add-liquidity     addLiquidity
//	remove-liquidity  removeLiquidity, optionally with a signed LP permit
//	path              report whether every hop of a path has a pair
//	quote-fee         quote the fee-token amount for a gas limit
//	mcp               serve the read-only MCP tools over SSE
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	relay "github.com/metaswap/relay/go"
	"github.com/metaswap/relay/go/internal/app"
	"github.com/metaswap/relay/go/internal/config"
	"github.com/metaswap/relay/go/internal/logging"
	"github.com/metaswap/relay/go/mcp"
)

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "relayctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("relayctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "config file (defaults to ./relay.yaml)")
	envPath := global.String("env", ".env", "dotenv file loaded before the config")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	name, rest := global.Arg(0), global.Args()[1:]

	if err := config.LoadDotEnv(*envPath); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.New(stderr, cfg.App.LogLevel)

	action, err := parseCommand(name, rest, time.Now(), stderr)
	if err != nil {
		return err
	}

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(shutdown); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
	}()

	result, err := action(ctx, rt.Client, logger)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// action runs a parsed command; a nil result prints nothing
type action func(ctx context.Context, client *relay.Client, logger zerolog.Logger) (interface{}, error)

func parseCommand(name string, args []string, now time.Time, out io.Writer) (action, error) {
	switch name {
	case "swap-exact-in":
		p, err := parseSwapExactIn(args, now, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			return client.SwapExactTokensForTokens(ctx, p)
		}, nil

	case "swap-exact-out":
		p, err := parseSwapExactOut(args, now, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			return client.SwapTokensForExactTokens(ctx, p)
		}, nil

	case "add-liquidity":
		p, err := parseAddLiquidity(args, now, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			return client.AddLiquidity(ctx, p)
		}, nil

	case "remove-liquidity":
		a, err := parseRemoveLiquidity(args, now, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			p := a.params
			if a.permit {
				permit, err := client.PermitLP(ctx, a.permitParams())
				if err != nil {
					return nil, err
				}
				p.Permit = permit
			}
			return client.RemoveLiquidity(ctx, p)
		}, nil

	case "path":
		path, err := parsePath(args, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			exists, err := client.PathExists(ctx, path)
			if err != nil {
				return nil, err
			}
			return mcp.PathExistsResult{Path: path, Exists: exists}, nil
		}, nil

	case "quote-fee":
		gasLimit, gasPrice, err := parseQuoteFee(args, out)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, _ zerolog.Logger) (interface{}, error) {
			quote, price, err := client.QuoteFee(ctx, gasLimit, gasPrice)
			if err != nil {
				return nil, err
			}
			return mcp.QuoteFeeResult{
				FeeToken:    quote.Token,
				Decimals:    quote.Decimals,
				MaxTokenFee: quote.MaxTokenFee.String(),
				GasLimit:    gasLimit,
				GasPrice:    price.String(),
			}, nil
		}, nil

	case "mcp":
		fs := newFlagSet("mcp", out)
		addr := fs.String("addr", ":3001", "listen address of the SSE endpoint")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, client *relay.Client, logger zerolog.Logger) (interface{}, error) {
			return nil, serveMCP(ctx, *addr, client, logger)
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

// serveMCP serves the MCP tools until ctx is cancelled
func serveMCP(ctx context.Context, addr string, client *relay.Client, logger zerolog.Logger) error {
	server := mcp.NewServer(client, mcp.Options{})
	handler := mcpsdk.NewSSEHandler(func(*nethttp.Request) *mcpsdk.Server { return server }, &mcpsdk.SSEOptions{})
	srv := &nethttp.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info().Str("addr", addr).Msg("mcp server up")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdown)
	}
}
