package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/config"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/policyform"
	"github.com/hazyhaar/polizas/wizard"
)

type importOptions struct {
	user     string
	password string
	client   string
	company  string
	dryRun   bool
}

// importResult is one line of the import report.
type importResult struct {
	File       string             `json:"file"`
	Step       string             `json:"step"`
	Submitted  bool               `json:"submitted"`
	PolicyID   string             `json:"policyId,omitempty"`
	Number     string             `json:"numeroPoliza,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Missing    []string           `json:"missing,omitempty"`
	Validation *policyform.Report `json:"validation,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func importCmd(load func() (*config.Config, error)) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <file.pdf>...",
		Short: "Run the policy wizard headless for one or more PDFs",
		Long: "Logs in, then for each PDF in order: selects the client and company, " +
			"uploads, extracts and submits the policy. With --dry-run the wizard stops at the form " +
			"and prints the validation report instead of submitting.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.BackendURL == "" {
				return errors.New("config: backend_url (BACKEND_URL) is required")
			}
			if opts.password == "" {
				opts.password = os.Getenv("POLIZAS_PASSWORD")
			}
			client := backend.New(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout, Logger: slog.Default()})
			svc := wizard.NewService(wizard.Config{
				Backend:    client,
				Pipeline:   docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxUploadBytes, PreviewChars: cfg.PreviewChars}),
				Normalizer: &extraction.Normalizer{Logger: slog.Default()},
			})
			results, err := runImport(cmd.Context(), client, svc, opts, args)
			if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Error != "" {
					return fmt.Errorf("import: %d of %d files failed", countFailed(results), len(results))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "", "backend username")
	cmd.Flags().StringVar(&opts.password, "password", "", "backend password (default $POLIZAS_PASSWORD)")
	cmd.Flags().StringVar(&opts.client, "client", "", "client id")
	cmd.Flags().StringVar(&opts.company, "company", "", "company id")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "stop at the form and print the validation report")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

// loginBackend is the part of backend.API the importer needs besides the
// wizard backend.
type loginBackend interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
}

// runImport processes files in order. Only an authentication failure or a
// cancelled context stops the run; other failures are reported per file.
func runImport(ctx context.Context, b loginBackend, svc *wizard.Service, opts importOptions, files []string) ([]importResult, error) {
	login, err := b.Login(ctx, opts.user, opts.password)
	if err != nil {
		return nil, err
	}
	c := wizard.Caller{Owner: "cli:" + login.User.ID, UserID: login.User.ID, Token: login.Token}

	results := make([]importResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := importOne(ctx, svc, c, opts, path)
		results = append(results, res)
		if apperr.Is(err, apperr.KindAuth) {
			return results, err
		}
	}
	return results, nil
}

func importOne(ctx context.Context, svc *wizard.Service, c wizard.Caller, opts importOptions, path string) (importResult, error) {
	res := importResult{File: filepath.Base(path)}
	fail := func(st *wizard.State, err error) (importResult, error) {
		if st != nil {
			res.Step = st.Step.String()
		}
		res.Error = apperr.UserMessage(err)
		var missing *policyform.MissingFieldsError
		if errors.As(err, &missing) {
			res.Missing = missing.Fields
		}
		return res, err
	}

	st, err := svc.Start(ctx, c)
	if err != nil {
		return fail(nil, err)
	}
	defer svc.Discard(context.WithoutCancel(ctx), c, st.ID)

	if st, err = svc.SelectClient(ctx, c, st.ID, opts.client); err != nil {
		return fail(st, err)
	}
	if st, err = svc.SelectCompany(ctx, c, st.ID, opts.company); err != nil {
		return fail(st, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(st, apperr.Wrap(apperr.KindUpload, "import.open", "no se pudo leer el archivo", err))
	}
	st, err = svc.Upload(ctx, c, st.ID, res.File, f)
	f.Close()
	if err != nil {
		return fail(st, err)
	}
	if st, err = svc.Extract(ctx, c, st.ID); err != nil {
		return fail(st, err)
	}
	res.Step = st.Step.String()
	if st.Extracted != nil {
		res.Confidence = st.Extracted.Confidence
		if st.Extracted.Failed {
			res.Error = st.Extracted.Error
			return res, nil
		}
	}

	if opts.dryRun {
		rep, err := svc.Validation(ctx, c, st.ID)
		if err != nil {
			return fail(st, err)
		}
		res.Validation = &rep
		res.Missing = rep.Missing()
		return res, nil
	}

	if st, err = svc.Submit(ctx, c, st.ID); err != nil {
		return fail(st, err)
	}
	res.Step = st.Step.String()
	res.Submitted = true
	if st.Submitted != nil {
		res.PolicyID = st.Submitted.ID
		res.Number = st.Submitted.NumeroPoliza
	}
	return res, nil
}

func countFailed(results []importResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
