package wizard

import (
	"maps"
	"time"

	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/policyform"
)

// State is one policy-capture wizard. Its methods are pure transitions with
// no I/O; Service performs the calls around them.
type State struct {
	ID        string                `json:"id"`
	Owner     string                `json:"-"`
	Step      Step                  `json:"step"`
	Client    *backend.Client       `json:"client,omitempty"`
	Company   *backend.Company      `json:"company,omitempty"`
	File      *docpipe.Document     `json:"file,omitempty"`
	Extracted *extraction.Result    `json:"extracted,omitempty"`
	Form      *policyform.Form      `json:"form,omitempty"`
	Completed bool                  `json:"completed"`
	Submitted *backend.SubmitResult `json:"submitted,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// NewState returns a wizard at the first step.
func NewState(id, owner string, now time.Time) *State {
	return &State{ID: id, Owner: owner, Step: StepClientSelect, CreatedAt: now, UpdatedAt: now}
}

// SelectClient records the insured party. Only allowed at client-select.
func (s *State) SelectClient(c backend.Client) error {
	if s.Step != StepClientSelect {
		return wrongStep(s.Step)
	}
	s.Client = &c
	return nil
}

// SelectCompany records the insurer. Only allowed at company-select.
func (s *State) SelectCompany(c backend.Company) error {
	if s.Step != StepCompanySelect {
		return wrongStep(s.Step)
	}
	s.Company = &c
	return nil
}

// AttachFile records an accepted PDF. Only allowed at upload.
func (s *State) AttachFile(doc *docpipe.Document) error {
	if s.Step != StepUpload {
		return wrongStep(s.Step)
	}
	if doc == nil {
		return gate(s.Step, CodeFileRequired, "seleccione un archivo PDF")
	}
	s.File = doc
	return nil
}

// SetExtraction stores the normalized result and seeds the form from it. At
// the form step it is only allowed to replace a failed extraction.
func (s *State) SetExtraction(r extraction.Result) error {
	switch s.Step {
	case StepExtract:
	case StepForm:
		if s.Extracted != nil && !s.Extracted.Failed {
			return gate(s.Step, CodeRetryNotNeeded, "el documento ya fue procesado")
		}
	default:
		return wrongStep(s.Step)
	}
	if s.File == nil {
		return gate(s.Step, CodeFileRequired, "no hay un documento cargado")
	}
	s.Extracted = &r
	f := policyform.FromExtraction(r)
	s.Form = &f
	return nil
}

// UpdateForm applies field edits and returns the new validation report.
// Valid edits are kept even when another one fails.
func (s *State) UpdateForm(edits map[string]any) (policyform.Report, error) {
	if s.Step != StepForm || s.Form == nil {
		return policyform.Report{}, wrongStep(s.Step)
	}
	err := s.Form.Apply(edits)
	return policyform.Validate(*s.Form), err
}

// Validation reports on the current form.
func (s *State) Validation() (policyform.Report, bool) {
	if s.Form == nil {
		return policyform.Report{}, false
	}
	return policyform.Validate(*s.Form), true
}

// Gate returns nil when the precondition for leaving the current step holds.
func (s *State) Gate() error {
	switch s.Step {
	case StepClientSelect:
		if s.Client == nil {
			return gate(s.Step, CodeClientRequired, "seleccione un cliente")
		}
	case StepCompanySelect:
		if s.Company == nil {
			return gate(s.Step, CodeCompanyRequired, "seleccione una compañía")
		}
	case StepUpload:
		if s.File == nil {
			return gate(s.Step, CodeFileRequired, "seleccione un archivo PDF")
		}
	case StepExtract:
		if s.Extracted == nil {
			return gate(s.Step, CodeExtractRequired, "el documento aún no fue procesado")
		}
	case StepForm:
		if s.Form == nil {
			return gate(s.Step, CodeExtractRequired, "el documento aún no fue procesado")
		}
		return policyform.CheckSubmittable(*s.Form)
	case StepSuccess:
		return gate(s.Step, CodeCompleted, "la póliza ya fue enviada")
	}
	return nil
}

// Advance moves one step forward when the current step's gate holds. The
// form step is left only through MarkSubmitted.
func (s *State) Advance() error {
	if err := s.Gate(); err != nil {
		return err
	}
	if s.Step == StepForm {
		return gate(s.Step, CodeSubmitRequired, "envíe la póliza para finalizar")
	}
	s.Step++
	return nil
}

// MarkSubmitted records the backend's answer and completes the wizard.
func (s *State) MarkSubmitted(res backend.SubmitResult) error {
	if s.Step != StepForm {
		return wrongStep(s.Step)
	}
	if err := s.Gate(); err != nil {
		return err
	}
	s.Submitted = &res
	s.Completed = true
	s.Step = StepSuccess
	return nil
}

// CanGoBack reports whether Back is allowed.
func (s *State) CanGoBack() bool {
	return s.Step > StepClientSelect && s.Step < StepSuccess
}

// Back clears what the current step captured and moves one step back.
func (s *State) Back() error {
	switch s.Step {
	case StepCompanySelect:
		s.Company = nil
	case StepUpload:
		s.File = nil
	case StepExtract:
		s.Extracted = nil
		s.File = nil
		s.Step = StepUpload
		return nil
	case StepForm:
		s.Form = nil
		s.Extracted = nil
	case StepSuccess:
		return gate(s.Step, CodeCompleted, "la póliza ya fue enviada")
	default:
		return gate(s.Step, CodeCannotGoBack, "no hay un paso anterior")
	}
	s.Step--
	return nil
}

// Reset clears everything and returns to client-select.
func (s *State) Reset() {
	s.Step = StepClientSelect
	s.Client = nil
	s.Company = nil
	s.File = nil
	s.Extracted = nil
	s.Form = nil
	s.Completed = false
	s.Submitted = nil
}

// clone copies s deeply enough that callers can read it without holding the
// store lock. Documents are immutable once accepted and are shared.
func (s *State) clone() *State {
	c := *s
	if s.Client != nil {
		v := *s.Client
		c.Client = &v
	}
	if s.Company != nil {
		v := *s.Company
		c.Company = &v
	}
	if s.Extracted != nil {
		v := *s.Extracted
		v.Sources = maps.Clone(s.Extracted.Sources)
		c.Extracted = &v
	}
	if s.Form != nil {
		v := *s.Form
		c.Form = &v
	}
	if s.Submitted != nil {
		v := *s.Submitted
		c.Submitted = &v
	}
	return &c
}
