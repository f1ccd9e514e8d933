package wizard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
	"github.com/hazyhaar/polizas/idgen"
	"github.com/hazyhaar/polizas/journal"
	"github.com/hazyhaar/polizas/policyform"
)

const goodRaw = `{
	"extractedFields": {
		"policyNumber": "AUT-2024-001",
		"asegurado": "Juan Pérez",
		"vigenciaDesde": "01/03/2024",
		"vigenciaHasta": "01/03/2025",
		"premio": "$ 12.345,67"
	},
	"confidence": 92
}`

type fakeBackend struct {
	mu         sync.Mutex
	calls      []string
	processRaw []byte
	processErr error
	// when set, ProcessDocument signals entered and waits for release
	entered    chan struct{}
	release    chan struct{}
	submitErr  error
	submitted  []policyform.VelneoPolicy
}

func (f *fakeBackend) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeBackend) GetClient(_ context.Context, token, id string) (backend.Client, error) {
	f.call("get_client")
	if id == "missing" {
		return backend.Client{}, apperr.New(apperr.KindNotFound, "backend.get_client", "recurso no encontrado")
	}
	return backend.Client{ID: id, Nombre: "Cliente " + id}, nil
}

func (f *fakeBackend) ListCompanies(context.Context, string) ([]backend.Company, error) {
	f.call("list_companies")
	return []backend.Company{{ID: "bse", Nombre: "BSE"}, {ID: "sura", Nombre: "SURA"}}, nil
}

func (f *fakeBackend) ProcessDocument(_ context.Context, _, _ string, _ []byte) ([]byte, error) {
	f.call("process")
	if f.release != nil {
		close(f.entered)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return nil, f.processErr
	}
	if f.processRaw != nil {
		return f.processRaw, nil
	}
	return []byte(goodRaw), nil
}

func (f *fakeBackend) SubmitPolicy(_ context.Context, _ string, p policyform.VelneoPolicy) (backend.SubmitResult, error) {
	f.call("submit")
	if f.submitErr != nil {
		return backend.SubmitResult{}, f.submitErr
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, p)
	f.mu.Unlock()
	return backend.SubmitResult{ID: "555", NumeroPoliza: p.NumeroPoliza}, nil
}

// fakeIntake accepts any .pdf without parsing it.
type fakeIntake struct{}

func (fakeIntake) ReadUpload(r io.Reader, name string) (*docpipe.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, ".pdf") {
		return nil, apperr.New(apperr.KindUpload, "fake.accept", "solo se aceptan archivos PDF")
	}
	return &docpipe.Document{Filename: name, Size: int64(len(data)), Pages: 1, SHA256: "abc", MIME: docpipe.MIMEPDF, Data: data}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []journal.Event
}

func (r *recorder) Record(_ context.Context, ev journal.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type harness struct {
	svc     *Service
	backend *fakeBackend
	journal *recorder
	caller  Caller
	ctx     context.Context
}

func newHarness(t *testing.T, intake Intake) *harness {
	t.Helper()
	if intake == nil {
		intake = fakeIntake{}
	}
	fb := &fakeBackend{}
	rec := &recorder{}
	svc := NewService(Config{
		Backend:  fb,
		Pipeline: intake,
		Journal:  rec,
		NewID:    idgen.Sequence("wiz_"),
		Now:      func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	return &harness{svc: svc, backend: fb, journal: rec, caller: Caller{Owner: "ses_1", UserID: "u1", Token: "tok"}, ctx: context.Background()}
}

// toExtract drives a new wizard up to the extract step.
func (h *harness) toExtract(t *testing.T) *State {
	t.Helper()
	st, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)
	_, err = h.svc.SelectClient(h.ctx, h.caller, st.ID, "42")
	require.NoError(t, err)
	_, err = h.svc.SelectCompany(h.ctx, h.caller, st.ID, "bse")
	require.NoError(t, err)
	st, err = h.svc.Upload(h.ctx, h.caller, st.ID, "poliza.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, StepExtract, st.Step)
	return st
}

func gateCode(t *testing.T, err error) string {
	t.Helper()
	var ge *GateError
	require.True(t, errors.As(err, &ge), "want *GateError, got %v", err)
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))
	return ge.Code
}

func TestStep_Text(t *testing.T) {
	for _, s := range Steps {
		b, err := s.MarshalText()
		require.NoError(t, err)
		got, err := ParseStep(string(b))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStep("review")
	assert.Error(t, err)

	b, err := json.Marshal(struct {
		Step Step `json:"step"`
	}{StepCompanySelect})
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"company-select"}`, string(b))

	var v struct {
		Step Step `json:"step"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"step":"form"}`), &v))
	assert.Equal(t, StepForm, v.Step)
	assert.Equal(t, "step(9)", Step(9).String())
}

func TestState_GatesBlockAdvance(t *testing.T) {
	st := NewState("w", "o", time.Now())
	assert.Equal(t, CodeClientRequired, gateCode(t, st.Advance()))

	require.NoError(t, st.SelectClient(backend.Client{ID: "1"}))
	require.NoError(t, st.Advance())
	assert.Equal(t, CodeCompanyRequired, gateCode(t, st.Advance()))
	assert.Equal(t, CodeWrongStep, gateCode(t, st.SelectClient(backend.Client{ID: "2"})))

	require.NoError(t, st.SelectCompany(backend.Company{ID: "c"}))
	require.NoError(t, st.Advance())
	assert.Equal(t, CodeFileRequired, gateCode(t, st.Advance()))

	require.NoError(t, st.AttachFile(&docpipe.Document{Filename: "p.pdf"}))
	require.NoError(t, st.Advance())
	assert.Equal(t, CodeExtractRequired, gateCode(t, st.Advance()))

	require.NoError(t, st.SetExtraction(extraction.Failed(nil)))
	require.NoError(t, st.Advance())
	assert.Equal(t, StepForm, st.Step)

	var missing *policyform.MissingFieldsError
	require.ErrorAs(t, st.Advance(), &missing)

	_, err := st.UpdateForm(map[string]any{
		"numeroPoliza": "A-1", "asegurado": "Ana", "vigenciaDesde": "2024-01-01", "vigenciaHasta": "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, CodeSubmitRequired, gateCode(t, st.Advance()))

	require.NoError(t, st.MarkSubmitted(backend.SubmitResult{ID: "9"}))
	assert.Equal(t, StepSuccess, st.Step)
	assert.True(t, st.Completed)
	assert.Equal(t, CodeCompleted, gateCode(t, st.Advance()))
}

func atStep(t *testing.T, step Step) *State {
	t.Helper()
	st := NewState("w", "o", time.Now())
	st.Client = &backend.Client{ID: "1"}
	st.Step = StepCompanySelect
	if step >= StepUpload {
		st.Company = &backend.Company{ID: "c"}
		st.Step = StepUpload
	}
	if step >= StepExtract {
		st.File = &docpipe.Document{Filename: "p.pdf"}
		st.Step = StepExtract
	}
	if step >= StepForm {
		require.NoError(t, st.SetExtraction(extraction.Result{NumeroPoliza: "A-1"}))
		st.Step = StepForm
	}
	require.Equal(t, step, st.Step)
	return st
}

func TestState_BackFromCompanyKeepsClient(t *testing.T) {
	st := atStep(t, StepCompanySelect)
	st.Company = &backend.Company{ID: "c"}
	require.NoError(t, st.Back())
	assert.Equal(t, StepClientSelect, st.Step)
	assert.Nil(t, st.Company)
	require.NotNil(t, st.Client)
	assert.Equal(t, "1", st.Client.ID)
}

func TestState_BackFromUploadClearsFile(t *testing.T) {
	st := atStep(t, StepUpload)
	st.File = &docpipe.Document{Filename: "p.pdf"}
	require.NoError(t, st.Back())
	assert.Equal(t, StepCompanySelect, st.Step)
	assert.Nil(t, st.File)
	assert.NotNil(t, st.Client)
	assert.NotNil(t, st.Company)
}

func TestState_BackFromExtractReturnsToUpload(t *testing.T) {
	st := atStep(t, StepExtract)
	require.NoError(t, st.Back())
	assert.Equal(t, StepUpload, st.Step)
	assert.Nil(t, st.File)
	assert.Nil(t, st.Extracted)
	assert.NotNil(t, st.Company)
}

func TestState_BackFromFormReturnsToExtract(t *testing.T) {
	st := atStep(t, StepForm)
	require.NoError(t, st.Back())
	assert.Equal(t, StepExtract, st.Step)
	assert.Nil(t, st.Form)
	assert.Nil(t, st.Extracted)
	assert.NotNil(t, st.File)
}

func TestState_BackRefused(t *testing.T) {
	st := NewState("w", "o", time.Now())
	assert.Equal(t, CodeCannotGoBack, gateCode(t, st.Back()))
	assert.False(t, st.CanGoBack())

	st = atStep(t, StepForm)
	st.Step = StepSuccess
	assert.Equal(t, CodeCompleted, gateCode(t, st.Back()))
}

func TestState_Reset(t *testing.T) {
	st := atStep(t, StepForm)
	st.Reset()
	assert.Equal(t, StepClientSelect, st.Step)
	assert.Nil(t, st.Client)
	assert.Nil(t, st.Company)
	assert.Nil(t, st.File)
	assert.Nil(t, st.Extracted)
	assert.Nil(t, st.Form)
	assert.False(t, st.Completed)
}

func TestService_HappyPath(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)

	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, st.Step)
	require.NotNil(t, st.Extracted)
	assert.False(t, st.Extracted.Failed)
	assert.Equal(t, "AUT-2024-001", st.Form.NumeroPoliza)
	assert.Equal(t, "2024-03-01", st.Form.VigenciaDesde)
	assert.InDelta(t, 12345.67, st.Form.Premio, 0.001)

	st, rep, err := h.svc.UpdateForm(h.ctx, h.caller, st.ID, map[string]any{"email": "JUAN@EXAMPLE.COM", "observaciones": "<b>urgente</b>"})
	require.NoError(t, err)
	assert.True(t, rep.Valid(), "errors: %+v", rep.Errors)

	st, err = h.svc.Submit(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	assert.True(t, st.Completed)
	require.NotNil(t, st.Submitted)
	assert.Equal(t, "555", st.Submitted.ID)

	require.Len(t, h.backend.submitted, 1)
	sent := h.backend.submitted[0]
	assert.Equal(t, "42", sent.ClienteID)
	assert.Equal(t, "bse", sent.CompaniaID)
	assert.Equal(t, "poliza.pdf", sent.Archivo.Filename)
	assert.Equal(t, "urgente", sent.Observaciones)
	assert.InDelta(t, 0.92, sent.Confianza, 0.0001)

	assert.Equal(t, []string{"start", "select_client", "select_company", "upload", "extract", "update_form", "submit"}, h.journal.actions())

	_, err = h.svc.Submit(h.ctx, h.caller, st.ID)
	assert.Equal(t, CodeWrongStep, gateCode(t, err))
	assert.Equal(t, 1, h.backend.count("submit"))
}

func TestService_ExtractFailureLandsInForm(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	h.backend.processErr = apperr.New(apperr.KindProcessing, "backend.process_document", "no se pudo procesar el documento")

	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, st.Step)
	require.NotNil(t, st.Extracted)
	assert.True(t, st.Extracted.Failed)
	assert.Equal(t, "no se pudo procesar el documento", st.Extracted.Error)
	require.NotNil(t, st.Form)
	assert.Empty(t, st.Form.NumeroPoliza)

	h.backend.mu.Lock()
	h.backend.processErr = nil
	h.backend.mu.Unlock()
	st, err = h.svc.Retry(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.False(t, st.Extracted.Failed)
	assert.Equal(t, "AUT-2024-001", st.Form.NumeroPoliza)

	_, err = h.svc.Retry(h.ctx, h.caller, st.ID)
	assert.Equal(t, CodeRetryNotNeeded, gateCode(t, err))
	assert.Equal(t, 2, h.backend.count("process"))
}

func TestService_ExtractAuthFailureKeepsStep(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	h.backend.processErr = apperr.New(apperr.KindAuth, "backend.process_document", "sesión expirada, inicie sesión nuevamente")

	_, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepExtract, st.Step)
	assert.Nil(t, st.Extracted)
}

func TestService_UploadNonPDFMakesNoNetworkCall(t *testing.T) {
	h := newHarness(t, docpipe.New(docpipe.Config{}))
	st, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)
	_, err = h.svc.SelectClient(h.ctx, h.caller, st.ID, "42")
	require.NoError(t, err)
	_, err = h.svc.SelectCompany(h.ctx, h.caller, st.ID, "bse")
	require.NoError(t, err)
	before := len(h.backend.calls)

	_, err = h.svc.Upload(h.ctx, h.caller, st.ID, "notas.txt", strings.NewReader("hola"))
	assert.Equal(t, apperr.KindUpload, apperr.KindOf(err))
	_, err = h.svc.Upload(h.ctx, h.caller, st.ID, "falso.pdf", strings.NewReader("PK\x03\x04 not a pdf"))
	assert.Equal(t, apperr.KindUpload, apperr.KindOf(err))

	assert.Len(t, h.backend.calls, before)
	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepUpload, st.Step)
	assert.Nil(t, st.File)
}

func TestService_SubmitListsMissingFields(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	h.backend.processRaw = []byte(`{"vigenciaDesde":"2024-01-01","vigenciaHasta":"2025-01-01"}`)
	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)

	_, err = h.svc.Submit(h.ctx, h.caller, st.ID)
	var missing *policyform.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"numeroPoliza", "asegurado"}, missing.Fields)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, h.backend.count("submit"))

	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, st.Step)
}

func TestService_SubmitRejectsMarkupOnlyField(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)

	_, rep, err := h.svc.UpdateForm(h.ctx, h.caller, st.ID, map[string]any{"asegurado": "<b></b>"})
	require.NoError(t, err)
	assert.Contains(t, rep.Missing(), "asegurado")

	_, err = h.svc.Submit(h.ctx, h.caller, st.ID)
	var missing *policyform.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"asegurado"}, missing.Fields)
	assert.Zero(t, h.backend.count("submit"))

	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, st.Step)
}

func TestService_SubmitBackendErrorKeepsForm(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	h.backend.submitErr = apperr.New(apperr.KindValidation, "backend.submit_policy", "El cliente no existe")

	_, err = h.svc.Submit(h.ctx, h.caller, st.ID)
	assert.Equal(t, "El cliente no existe", apperr.UserMessage(err))
	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, st.Step)
	assert.False(t, st.Completed)
}

func TestService_UpdateFormKeepsValidEdits(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	st, err := h.svc.Extract(h.ctx, h.caller, st.ID)
	require.NoError(t, err)

	st, rep, err := h.svc.UpdateForm(h.ctx, h.caller, st.ID, map[string]any{"corredor": "Broker SA", "prima": "no es número"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NotNil(t, st)
	assert.Equal(t, "Broker SA", st.Form.Corredor)
	assert.NotEmpty(t, rep.Tabs)

	_, _, err = h.svc.UpdateForm(h.ctx, h.caller, st.ID, map[string]any{"inexistente": 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestService_SelectionErrors(t *testing.T) {
	h := newHarness(t, nil)
	st, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)

	_, err = h.svc.SelectClient(h.ctx, h.caller, st.ID, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = h.svc.SelectCompany(h.ctx, h.caller, st.ID, "bse")
	assert.Equal(t, CodeWrongStep, gateCode(t, err))

	_, err = h.svc.SelectClient(h.ctx, h.caller, st.ID, "42")
	require.NoError(t, err)
	_, err = h.svc.SelectCompany(h.ctx, h.caller, st.ID, "nope")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	st, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCompanySelect, st.Step)
	assert.Nil(t, st.Company)
}

func TestService_BackAndReset(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)

	st, err := h.svc.Back(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepUpload, st.Step)
	assert.Nil(t, st.File)

	st, err = h.svc.Back(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepCompanySelect, st.Step)
	assert.Equal(t, "42", st.Client.ID)

	st, err = h.svc.Reset(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientSelect, st.Step)
	assert.Nil(t, st.Client)
}

func TestService_OwnerIsolation(t *testing.T) {
	h := newHarness(t, nil)
	st, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)

	intruder := Caller{Owner: "ses_2", Token: "tok2"}
	_, err = h.svc.Get(h.ctx, intruder, st.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = h.svc.SelectClient(h.ctx, intruder, st.ID, "42")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, h.backend.count("get_client"))
	assert.Error(t, h.svc.Discard(h.ctx, intruder, st.ID))

	_, err = h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)
	assert.Len(t, h.svc.List(h.ctx, h.caller), 2)
	assert.Equal(t, 2, h.svc.DropOwner(h.caller.Owner))
	_, err = h.svc.Get(h.ctx, h.caller, st.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestService_Discard(t *testing.T) {
	h := newHarness(t, nil)
	st, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)
	require.NoError(t, h.svc.Discard(h.ctx, h.caller, st.ID))
	_, err = h.svc.Get(h.ctx, h.caller, st.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 0, h.svc.Store().Len())
}

func TestProcessBatch(t *testing.T) {
	h := newHarness(t, nil)

	items, err := h.svc.ProcessBatch(h.ctx, h.caller, []BatchFile{
		{Filename: "a.pdf", Reader: bytes.NewReader([]byte("%PDF-a"))},
		{Filename: "b.txt", Reader: bytes.NewReader([]byte("texto"))},
		{Filename: "c.pdf", Reader: bytes.NewReader([]byte("%PDF-c"))},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.True(t, items[0].OK())
	assert.Equal(t, "AUT-2024-001", items[0].Result.NumeroPoliza)
	assert.Equal(t, apperr.KindUpload, items[1].Kind)
	assert.Nil(t, items[1].Result)
	assert.True(t, items[2].OK())
	assert.Equal(t, 2, h.backend.count("process"))
}

func TestProcessBatch_FailedItemDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.processErr = apperr.New(apperr.KindServer, "backend.process_document", "error del servidor, intente nuevamente más tarde")

	items, err := h.svc.ProcessBatch(h.ctx, h.caller, []BatchFile{
		{Filename: "a.pdf", Reader: strings.NewReader("%PDF-a")},
		{Filename: "b.pdf", Reader: strings.NewReader("%PDF-b")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.False(t, it.OK())
		assert.Equal(t, apperr.KindProcessing, it.Kind)
		require.NotNil(t, it.Result)
		assert.True(t, it.Result.Failed)
	}
}

func TestProcessBatch_AuthStops(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.processErr = apperr.New(apperr.KindAuth, "backend.process_document", "sesión expirada, inicie sesión nuevamente")
	items, err := h.svc.ProcessBatch(h.ctx, h.caller, []BatchFile{
		{Filename: "a.pdf", Reader: strings.NewReader("%PDF-a")},
		{Filename: "b.pdf", Reader: strings.NewReader("%PDF-b")},
	})
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Empty(t, items)
	assert.Equal(t, 1, h.backend.count("process"))
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	s := NewStore()
	s.Put(NewState("w1", "o", time.Now()))

	_, err := s.Update("w1", "o", time.Now(), func(st *State) error {
		st.Client = &backend.Client{ID: "x"}
		return errors.New("boom")
	})
	require.Error(t, err)
	st, err := s.Get("w1", "o")
	require.NoError(t, err)
	assert.Nil(t, st.Client)

	// returned copies are detached from the store
	st.Step = StepSuccess
	again, _ := s.Get("w1", "o")
	assert.Equal(t, StepClientSelect, again.Step)
}

func TestService_ReadsDoNotWaitForExtraction(t *testing.T) {
	h := newHarness(t, nil)
	st := h.toExtract(t)
	h.backend.entered = make(chan struct{})
	h.backend.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Extract(h.ctx, h.caller, st.ID)
		done <- err
	}()
	<-h.backend.entered

	got, err := h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepExtract, got.Step)
	require.Len(t, h.svc.List(h.ctx, h.caller), 1)

	// other wizards keep moving
	other, err := h.svc.Start(h.ctx, h.caller)
	require.NoError(t, err)
	_, err = h.svc.SelectClient(h.ctx, h.caller, other.ID, "42")
	require.NoError(t, err)

	close(h.backend.release)
	require.NoError(t, <-done)
	got, err = h.svc.Get(h.ctx, h.caller, st.ID)
	require.NoError(t, err)
	assert.Equal(t, StepForm, got.Step)
}

func TestStore_DropIdle(t *testing.T) {
	s := NewStore()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put(NewState("old", "o", old))
	s.Put(NewState("new", "o", old.Add(2*time.Hour)))

	assert.Equal(t, 1, s.DropIdle(old.Add(time.Hour)))
	_, err := s.Get("old", "o")
	assert.Error(t, err)
	_, err = s.Get("new", "o")
	assert.NoError(t, err)
}
