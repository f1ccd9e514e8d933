package main

import (
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/polizas/config"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/kit"
	"github.com/hazyhaar/polizas/policyform"
)

func normalizeCmd() *cobra.Command {
	var withRaw bool
	cmd := &cobra.Command{
		Use:   "normalize <raw.json|->",
		Short: "Normalize a raw document-intelligence response into policy fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			res := extraction.Normalize(raw)
			if !withRaw {
				res.Raw = nil
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&withRaw, "raw", false, "include the raw input in the output")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <form.json|->",
		Short: "Validate a policy form and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var edits map[string]any
			if err := json.Unmarshal(data, &edits); err != nil {
				return fmt.Errorf("parse form: %w", err)
			}
			var form policyform.Form
			if err := form.Apply(edits); err != nil {
				return err
			}
			rep := policyform.Validate(form)
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if !rep.Valid() {
				return fmt.Errorf("form has %d errors", len(rep.Errors))
			}
			return nil
		},
	}
}

func mcpCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the normalize, validate and inspect tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			srv := newMCPServer(cfg)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

func newMCPServer(cfg *config.Config) *mcp.Server {
	logger := slog.Default()
	srv := mcp.NewServer(&mcp.Implementation{Name: "polizas", Version: "1.0.0"}, nil)
	(&extraction.Normalizer{Logger: logger}).RegisterMCP(srv, kit.Logging(logger, "extraction_normalize"))
	policyform.RegisterMCP(srv, kit.Logging(logger, "policyform_validate"))
	docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxUploadBytes, PreviewChars: cfg.PreviewChars, Logger: logger}).
		RegisterMCP(srv, kit.Logging(logger, "docpipe_inspect"))
	return srv
}
