package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/tools"
)

// errDenied makes verify exit non-zero after printing a denied decision.
var errDenied = errors.New("credential denied")

type verifyOptions struct {
	operation string
	token     string
}

type verifyResult struct {
	Status        string         `json:"status"`
	Operation     string         `json:"operation,omitempty"`
	RequiredScope string         `json:"required_scope,omitempty"`
	Subject       string         `json:"subject,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Method        string         `json:"method,omitempty"`
	Scopes        []string       `json:"scopes,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Attempts      []string       `json:"attempts,omitempty"`
	Claims        map[string]any `json:"claims,omitempty"`
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify [--token TOKEN | -]",
		Short: "Evaluate a credential against the configured verifiers",
		Long: `verify runs a credential through the same verifiers and scope check the
server uses and prints the decision as JSON. Key sets are fetched from the
configured issuers. Pass "-" to read the credential from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := opts.token
			if len(args) == 1 {
				if args[0] != "-" {
					return fmt.Errorf("unexpected argument %q", args[0])
				}
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read credential: %w", err)
				}
				token = line
			}

			ctx := cmd.Context()
			cfg, err := root.load(ctx)
			if err != nil {
				return err
			}
			authCfg := cfg.Auth
			if len(authCfg.OperationScopes) == 0 {
				authCfg.OperationScopes = tools.DefaultOperationScopes()
			}
			logger := observe.NopLogger()
			if cfg.Observe.Logging.Level == "debug" {
				logger = observe.NewLoggerWithWriter("debug", cmd.ErrOrStderr())
			}
			stack, err := auth.Build(ctx, authCfg, auth.WithLogger(logger))
			if err != nil {
				return err
			}

			d := stack.Guard.Evaluate(ctx, strings.TrimSpace(token), opts.operation)
			if err := writeDecision(cmd.OutOrStdout(), d); err != nil {
				return err
			}
			if !d.Allowed() {
				return errDenied
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.operation, "operation", "o", tools.GetWeather, "operation to authorize")
	cmd.Flags().StringVarP(&opts.token, "token", "t", "", "credential to evaluate")
	return cmd
}

func writeDecision(w io.Writer, d auth.Decision) error {
	res := verifyResult{
		Status:        d.Status.String(),
		Operation:     d.Operation,
		RequiredScope: d.RequiredScope,
	}
	if id := d.Identity; id != nil {
		res.Subject = id.Subject
		res.Provider = id.Provider
		res.Method = string(id.Method)
		res.Scopes = id.Scopes.Slice()
		res.Claims = id.Claims
		if !id.ExpiresAt.IsZero() {
			exp := id.ExpiresAt.UTC()
			res.ExpiresAt = &exp
		}
	}
	if d.Err != nil {
		res.Reason = auth.ReasonLabel(d.Err)
		if errors.Is(d.Err, auth.ErrInsufficientScope) {
			res.Reason = "insufficient_scope"
		}
		var fe *auth.FailureError
		if errors.As(d.Err, &fe) {
			res.Attempts = fe.Reasons()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
