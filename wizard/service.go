// Package wizard runs the policy-capture flow: client, company, PDF upload,
// extraction, form review and submission to Velneo.
//
// State holds the pure step controller. Service wraps it with the backend
// calls, the PDF intake gate and the journal:
//
//	svc := wizard.NewService(wizard.Config{Backend: client, Pipeline: pipe, Journal: j})
//	st, _ := svc.Start(ctx, caller)
//	st, err := svc.SelectClient(ctx, caller, st.ID, "42")
package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/idgen"
	"github.com/hazyhaar/polizas/journal"
	"github.com/hazyhaar/polizas/kit"
	"github.com/hazyhaar/polizas/policyform"
)

// Backend is the subset of backend.API the wizard calls.
type Backend interface {
	GetClient(ctx context.Context, token, id string) (backend.Client, error)
	ListCompanies(ctx context.Context, token string) ([]backend.Company, error)
	ProcessDocument(ctx context.Context, token, filename string, data []byte) ([]byte, error)
	SubmitPolicy(ctx context.Context, token string, p policyform.VelneoPolicy) (backend.SubmitResult, error)
}

// Intake accepts uploaded files. *docpipe.Pipeline implements it.
type Intake interface {
	ReadUpload(r io.Reader, filename string) (*docpipe.Document, error)
}

// Recorder receives one event per wizard operation. *journal.Logger
// implements it.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event)
}

// Caller identifies who drives a wizard. Owner scopes wizards (the login
// session) and Token is the backend bearer token.
type Caller struct {
	Owner  string
	UserID string
	Token  string
}

// Config wires a Service.
type Config struct {
	Backend    Backend
	Pipeline   Intake
	Normalizer *extraction.Normalizer
	Journal    Recorder
	Store      *Store
	Logger     *slog.Logger
	NewID      idgen.Generator
	Now        func() time.Time
}

func (c *Config) defaults() {
	if c.Pipeline == nil {
		c.Pipeline = docpipe.New(docpipe.Config{})
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Normalizer == nil {
		c.Normalizer = &extraction.Normalizer{Logger: c.Logger}
	}
	if c.Store == nil {
		c.Store = NewStore()
	}
	if c.NewID == nil {
		c.NewID = idgen.Wizard
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Service orchestrates wizard operations.
type Service struct {
	cfg Config
}

// NewService builds a Service. Backend is required.
func NewService(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

// Store returns the wizard store.
func (s *Service) Store() *Store { return s.cfg.Store }

func (s *Service) now() time.Time { return s.cfg.Now().UTC() }

func (s *Service) record(ctx context.Context, c Caller, id, action string, st *State, err error, detail string) {
	ev := journal.Event{WizardID: id, UserID: c.UserID, Action: action, Detail: detail, Success: err == nil}
	if st != nil {
		ev.Step = st.Step.String()
	}
	if err != nil {
		if detail == "" {
			ev.Detail = apperr.UserMessage(err)
		}
		s.cfg.Logger.Debug("wizard: operation rejected", "wizard_id", id, "action", action, "error", err)
	}
	if s.cfg.Journal != nil {
		s.cfg.Journal.Record(ctx, ev)
	}
}

// update runs fn under the wizard lock and journals the outcome.
func (s *Service) update(ctx context.Context, c Caller, id, action string, fn func(context.Context, *State) (string, error)) (*State, error) {
	ctx = kit.WithWizardID(ctx, id)
	var detail string
	st, err := s.cfg.Store.Update(id, c.Owner, s.now(), func(st *State) error {
		var err error
		detail, err = fn(ctx, st)
		return err
	})
	if isStoreMiss(err) {
		return nil, err
	}
	s.record(ctx, c, id, action, st, err, detail)
	return st, err
}

func isStoreMiss(err error) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && (ae.Op == "wizard.update" || ae.Op == "wizard.get" || ae.Op == "wizard.delete")
}

// Start creates a wizard at client-select.
func (s *Service) Start(ctx context.Context, c Caller) (*State, error) {
	st := NewState(s.cfg.NewID(), c.Owner, s.now())
	s.cfg.Store.Put(st)
	s.record(kit.WithWizardID(ctx, st.ID), c, st.ID, "start", st, nil, "")
	return st, nil
}

// Get returns the wizard.
func (s *Service) Get(_ context.Context, c Caller, id string) (*State, error) {
	return s.cfg.Store.Get(id, c.Owner)
}

// List returns the caller's wizards.
func (s *Service) List(_ context.Context, c Caller) []*State {
	return s.cfg.Store.List(c.Owner)
}

// SelectClient fetches the client from the backend, records it and moves to
// company-select.
func (s *Service) SelectClient(ctx context.Context, c Caller, id, clientID string) (*State, error) {
	return s.update(ctx, c, id, "select_client", func(ctx context.Context, st *State) (string, error) {
		if st.Step != StepClientSelect {
			return "", wrongStep(st.Step)
		}
		if clientID == "" {
			return "", gate(st.Step, CodeClientRequired, "seleccione un cliente")
		}
		cl, err := s.cfg.Backend.GetClient(ctx, c.Token, clientID)
		if err != nil {
			return "", err
		}
		if err := st.SelectClient(cl); err != nil {
			return "", err
		}
		return cl.ID, st.Advance()
	})
}

// SelectCompany checks the company against the backend list, records it and
// moves to upload.
func (s *Service) SelectCompany(ctx context.Context, c Caller, id, companyID string) (*State, error) {
	return s.update(ctx, c, id, "select_company", func(ctx context.Context, st *State) (string, error) {
		if st.Step != StepCompanySelect {
			return "", wrongStep(st.Step)
		}
		if companyID == "" {
			return "", gate(st.Step, CodeCompanyRequired, "seleccione una compañía")
		}
		companies, err := s.cfg.Backend.ListCompanies(ctx, c.Token)
		if err != nil {
			return "", err
		}
		for _, co := range companies {
			if co.ID == companyID {
				if err := st.SelectCompany(co); err != nil {
					return "", err
				}
				return co.ID, st.Advance()
			}
		}
		return "", apperr.New(apperr.KindValidation, "wizard.select_company", "compañía no encontrada")
	})
}

// Upload reads and accepts a PDF, then moves to extract. Nothing is sent to
// the backend here.
func (s *Service) Upload(ctx context.Context, c Caller, id, filename string, r io.Reader) (*State, error) {
	return s.update(ctx, c, id, "upload", func(_ context.Context, st *State) (string, error) {
		if st.Step != StepUpload {
			return filename, wrongStep(st.Step)
		}
		doc, err := s.cfg.Pipeline.ReadUpload(r, filename)
		if err != nil {
			return filename, err
		}
		if err := st.AttachFile(doc); err != nil {
			return doc.Filename, err
		}
		return doc.Filename, st.Advance()
	})
}

// Extract sends the uploaded PDF for processing and normalizes the answer.
// A processing failure does not block the flow: the wizard moves to the form
// with a failed placeholder that the user can fill in or Retry.
func (s *Service) Extract(ctx context.Context, c Caller, id string) (*State, error) {
	return s.update(ctx, c, id, "extract", func(ctx context.Context, st *State) (string, error) {
		if st.Step != StepExtract {
			return "", wrongStep(st.Step)
		}
		if st.File == nil {
			return "", gate(st.Step, CodeFileRequired, "no hay un documento cargado")
		}
		res, err := s.process(ctx, c, st.File)
		if err != nil {
			return "", err
		}
		if err := st.SetExtraction(res); err != nil {
			return "", err
		}
		return res.Error, st.Advance()
	})
}

// Retry re-runs processing for a failed extraction while at the form step.
func (s *Service) Retry(ctx context.Context, c Caller, id string) (*State, error) {
	return s.update(ctx, c, id, "retry", func(ctx context.Context, st *State) (string, error) {
		if st.Step != StepForm {
			return "", wrongStep(st.Step)
		}
		if st.Extracted != nil && !st.Extracted.Failed {
			return "", gate(st.Step, CodeRetryNotNeeded, "el documento ya fue procesado")
		}
		if st.File == nil {
			return "", gate(st.Step, CodeFileRequired, "no hay un documento cargado")
		}
		res, err := s.process(ctx, c, st.File)
		if err != nil {
			return "", err
		}
		return res.Error, st.SetExtraction(res)
	})
}

// process calls the document-intelligence proxy. Only an authentication
// failure is returned as an error; every other failure becomes a placeholder.
func (s *Service) process(ctx context.Context, c Caller, doc *docpipe.Document) (extraction.Result, error) {
	raw, err := s.cfg.Backend.ProcessDocument(ctx, c.Token, doc.Filename, doc.Data)
	if err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			return extraction.Result{}, err
		}
		s.cfg.Logger.Warn("wizard: document processing failed", "filename", doc.Filename, "error", err)
		return extraction.Failed(err), nil
	}
	return s.cfg.Normalizer.Normalize(raw), nil
}

// UpdateForm applies field edits and returns the validation report.
func (s *Service) UpdateForm(ctx context.Context, c Caller, id string, edits map[string]any) (*State, policyform.Report, error) {
	var rep policyform.Report
	var editErr error
	st, err := s.update(ctx, c, id, "update_form", func(_ context.Context, st *State) (string, error) {
		var err error
		rep, err = st.UpdateForm(edits)
		var ge *GateError
		if errors.As(err, &ge) {
			return "", err
		}
		// invalid values do not roll back the valid edits of the batch
		editErr = err
		return "", nil
	})
	if err != nil {
		return nil, policyform.Report{}, err
	}
	return st, rep, editErr
}

// Validation returns the report for the current form.
func (s *Service) Validation(_ context.Context, c Caller, id string) (policyform.Report, error) {
	st, err := s.cfg.Store.Get(id, c.Owner)
	if err != nil {
		return policyform.Report{}, err
	}
	rep, ok := st.Validation()
	if !ok {
		return policyform.Report{}, wrongStep(st.Step)
	}
	return rep, nil
}

// Submit sanitizes the form, posts it to Velneo and completes the wizard.
// Missing required fields block the call before any network traffic.
func (s *Service) Submit(ctx context.Context, c Caller, id string) (*State, error) {
	return s.update(ctx, c, id, "submit", func(ctx context.Context, st *State) (string, error) {
		if st.Step != StepForm {
			return "", wrongStep(st.Step)
		}
		if err := st.Gate(); err != nil {
			return "", err
		}
		var doc policyform.DocumentMeta
		if st.File != nil {
			doc = policyform.DocumentMeta{Filename: st.File.Filename, SHA256: st.File.SHA256, Pages: st.File.Pages}
		}
		var conf float64
		if st.Extracted != nil {
			conf = st.Extracted.Confidence
		}
		policy := policyform.BuildVelneoPolicy(st.Client.ID, st.Company.ID, *st.Form, doc, conf)
		res, err := s.cfg.Backend.SubmitPolicy(ctx, c.Token, policy)
		if err != nil {
			return "", err
		}
		return res.NumeroPoliza, st.MarkSubmitted(res)
	})
}

// Back moves one step back, clearing what the left step captured.
func (s *Service) Back(ctx context.Context, c Caller, id string) (*State, error) {
	return s.update(ctx, c, id, "back", func(_ context.Context, st *State) (string, error) {
		from := st.Step.String()
		return from, st.Back()
	})
}

// Reset clears the wizard back to client-select.
func (s *Service) Reset(ctx context.Context, c Caller, id string) (*State, error) {
	return s.update(ctx, c, id, "reset", func(_ context.Context, st *State) (string, error) {
		st.Reset()
		return "", nil
	})
}

// Discard deletes the wizard.
func (s *Service) Discard(ctx context.Context, c Caller, id string) error {
	err := s.cfg.Store.Delete(id, c.Owner)
	if err == nil {
		s.record(kit.WithWizardID(ctx, id), c, id, "discard", nil, nil, "")
	}
	return err
}

// DropOwner discards every wizard of a session, on logout.
func (s *Service) DropOwner(owner string) int {
	return s.cfg.Store.DropOwner(owner)
}
