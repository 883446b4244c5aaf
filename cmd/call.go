package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/params"
	"github.com/USA-RedDragon/rpc-tester/internal/presenter"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
)

const (
	callEndpointKey = "endpoint"
	callMethodKey   = "method"
	callAddressKey  = "address"
	callBlockKey    = "block"
	callTxHashKey   = "tx-hash"
	callTxKey       = "tx"
	callFullTxKey   = "full-tx"
	callParamsKey   = "params"
	callReadableKey = "readable"
)

var ErrRequestFailed = errors.New("request failed")

func newCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send one JSON-RPC request and print the response",
		Long: "Send one JSON-RPC request and print the response.\n\n" +
			"--method takes a method key such as getBalance. Any other name is sent\n" +
			"as written, with --params as its JSON array of parameters.",
		RunE:          runCall,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP(config.ConfigFileKey, "c", config.DefaultConfigPath, "Config file path")
	config.RegisterTesterFlags(cmd)
	cmd.Flags().String(callEndpointKey, "", "Endpoint to call, defaults to tester.default_endpoint")
	cmd.Flags().StringP(callMethodKey, "m", "blockNumber", "Method key or wire method name")
	cmd.Flags().String(callAddressKey, "", "Address parameter")
	cmd.Flags().String(callBlockKey, "", "Block tag or number parameter")
	cmd.Flags().String(callTxHashKey, "", "Transaction hash parameter")
	cmd.Flags().String(callTxKey, "", "Transaction object as JSON")
	cmd.Flags().Bool(callFullTxKey, true, "Return full transactions from block lookups")
	cmd.Flags().String(callParamsKey, "", "JSON array of parameters for custom methods")
	cmd.Flags().Bool(callReadableKey, false, "Annotate hex quantities with their decimal value")
	return cmd
}

func runCall(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	t, err := tester.New(cfg, metrics.NewMetrics(), events.NewEventBus(), nil)
	if err != nil {
		return fmt.Errorf("failed to create tester: %w", err)
	}
	session := t.NewSession()
	defer func() {
		_ = t.CloseSession(session.ID())
	}()

	flags := cmd.Flags()
	if endpoint, _ := flags.GetString(callEndpointKey); endpoint != "" {
		if err := session.SetEndpoint(endpoint); err != nil {
			return err
		}
	}

	in := tester.SendInput{}
	in.Method, _ = flags.GetString(callMethodKey)
	in.Params, _ = flags.GetString(callParamsKey)
	in.Fields.Address, _ = flags.GetString(callAddressKey)
	in.Fields.BlockTag, _ = flags.GetString(callBlockKey)
	in.Fields.TxHash, _ = flags.GetString(callTxHashKey)
	in.Fields.Transaction, _ = flags.GetString(callTxKey)
	if flags.Changed(callFullTxKey) {
		fullTx, _ := flags.GetBool(callFullTxKey)
		in.Fields.FullTx = &fullTx
	}

	result, err := session.Send(context.Background(), in)
	if err != nil {
		var parseErr *params.ParamParseError
		if errors.As(err, &parseErr) {
			return fmt.Errorf("invalid --%s: %w", callParamsKey, err)
		}
		return err
	}

	request, err := json.Marshal(result.Request)
	if err != nil {
		return fmt.Errorf("failed to render request: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "-> %s %s\n", result.Endpoint, request)

	mode := presenter.ModeRaw
	if readable, _ := flags.GetBool(callReadableKey); readable {
		mode = presenter.ModeReadable
	}
	view, err := session.Last(mode)
	if err != nil {
		return err
	}
	if result.Response != nil {
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(view.Presentation.Text, "\n"))
	}
	if result.Warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", result.Warning)
	}
	if failure := result.TransportError; failure != nil {
		return fmt.Errorf("%w: %s", ErrRequestFailed, failure.Message)
	}
	return nil
}
