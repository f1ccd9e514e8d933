package policyform

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hazyhaar/polizas/apperr"
)

// Limits applied by Validate.
const (
	MaxAmount        = 1e9
	MinVehicleYear   = 1950
	MaxCuotas        = 60
	MaxObservaciones = 2000
	dateLayout       = time.DateOnly
)

// Currencies accepted in the moneda field.
var Currencies = []string{"UYU", "USD", "EUR", "UI"}

var (
	validate = validator.New()
	now      = time.Now
)

// ValidationError is one failed rule.
type ValidationError struct {
	Field   string `json:"field"`
	Tab     string `json:"tab"`
	Message string `json:"message"`
}

// TabStatus is the completion state of one tab.
type TabStatus struct {
	Name    string `json:"name"`
	Filled  int    `json:"filled"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Valid   bool   `json:"valid"`
}

// Report is the outcome of one validation pass.
type Report struct {
	Errors        []ValidationError `json:"errors"`
	ByField       map[string]string `json:"byField"`
	Tabs          []TabStatus       `json:"tabs"`
	Overall       int               `json:"overall"`
	MissingFields []string          `json:"missing"`
}

// Valid reports whether no rule failed.
func (r Report) Valid() bool { return len(r.Errors) == 0 }

// Missing lists the required fields that are empty.
func (r Report) Missing() []string { return r.MissingFields }

// Validate checks every rule against the sanitized form, so a field holding
// only markup counts as empty. It never modifies f. Each field reports at
// most one error; errors are ordered by tab then field.
func Validate(f Form) Report {
	f = Sanitize(f)
	errs := make(map[string]string)
	put := func(field, msg string) {
		if _, ok := errs[field]; !ok {
			errs[field] = msg
		}
	}

	var missing []string
	for _, name := range Required {
		if !byName[name].filled(&f) {
			missing = append(missing, name)
			put(name, fmt.Sprintf("%s es obligatorio", Label(name)))
		}
	}

	checkDates(&f, put)
	checkContact(&f, put)
	checkVehicle(&f, put)
	checkMoney(&f, put)

	if n := len([]rune(f.Observaciones)); n > MaxObservaciones {
		put("observaciones", fmt.Sprintf("Observaciones admite hasta %d caracteres (tiene %d)", MaxObservaciones, n))
	}

	rep := Report{ByField: errs, MissingFields: missing, Errors: []ValidationError{}}
	tabs := make(map[string]*TabStatus, len(Tabs))
	for _, name := range Tabs {
		rep.Tabs = append(rep.Tabs, TabStatus{Name: name, Valid: true})
		tabs[name] = &rep.Tabs[len(rep.Tabs)-1]
	}
	filled, total := 0, 0
	for _, fd := range formFields {
		ts := tabs[fd.tab]
		ts.Total++
		total++
		if fd.filled(&f) {
			ts.Filled++
			filled++
		}
		if msg, ok := errs[fd.name]; ok {
			ts.Valid = false
			rep.Errors = append(rep.Errors, ValidationError{Field: fd.name, Tab: fd.tab, Message: msg})
		}
	}
	for i := range rep.Tabs {
		rep.Tabs[i].Percent = percent(rep.Tabs[i].Filled, rep.Tabs[i].Total)
	}
	rep.Overall = percent(filled, total)
	return rep
}

func percent(n, total int) int {
	if total == 0 {
		return 100
	}
	return n * 100 / total
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

func checkDates(f *Form, put func(string, string)) {
	parsed := make(map[string]time.Time, 3)
	for _, name := range []string{"fechaEmision", "vigenciaDesde", "vigenciaHasta"} {
		v := *byName[name].str(f)
		if v == "" {
			continue
		}
		t, ok := parseDate(v)
		if !ok {
			put(name, fmt.Sprintf("%s no es una fecha válida (AAAA-MM-DD)", Label(name)))
			continue
		}
		parsed[name] = t
	}

	desde, okD := parsed["vigenciaDesde"]
	hasta, okH := parsed["vigenciaHasta"]
	if okD && okH && !hasta.After(desde) {
		put("vigenciaHasta", "La vigencia hasta debe ser posterior a la vigencia desde")
	}
	if em, ok := parsed["fechaEmision"]; ok && okH && em.After(hasta) {
		put("fechaEmision", "La fecha de emisión no puede ser posterior al fin de vigencia")
	}
}

func digitsOnly(s string, strip string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(strip, r) {
			return -1
		}
		return r
	}, s)
}

func checkContact(f *Form, put func(string, string)) {
	if f.Email != "" && validate.Var(f.Email, "email") != nil {
		put("email", "Email no tiene un formato válido")
	}
	if f.Documento != "" {
		d := digitsOnly(f.Documento, ".- ")
		if validate.Var(d, "numeric,min=6,max=12") != nil {
			put("documento", "Documento debe tener entre 6 y 12 dígitos")
		}
	}
	if f.Telefono != "" {
		d := strings.TrimPrefix(digitsOnly(f.Telefono, " -()/."), "+")
		if validate.Var(d, "numeric,min=8,max=15") != nil {
			put("telefono", "Teléfono debe tener entre 8 y 15 dígitos")
		}
	}
}

func checkVehicle(f *Form, put func(string, string)) {
	if f.VehiculoAnio != 0 {
		maxYear := now().Year() + 1
		if f.VehiculoAnio < MinVehicleYear || f.VehiculoAnio > maxYear {
			put("vehiculoAnio", fmt.Sprintf("Año debe estar entre %d y %d", MinVehicleYear, maxYear))
		}
	}
	if f.VehiculoMatricula != "" && validate.Var(f.VehiculoMatricula, "alphanum,min=5,max=8") != nil {
		put("vehiculoMatricula", "Matrícula debe tener entre 5 y 8 caracteres alfanuméricos")
	}
}

func checkMoney(f *Form, put func(string, string)) {
	for _, fd := range formFields {
		if fd.num == nil {
			continue
		}
		if validate.Var(*fd.num(f), "gte=0,lte=1000000000") != nil {
			put(fd.name, fmt.Sprintf("%s debe estar entre 0 y %.0f", fd.label, float64(MaxAmount)))
		}
	}
	if f.Prima > 0 && f.Premio > 0 && f.Premio < f.Prima {
		put("premio", "El premio no puede ser menor que la prima")
	}
	if f.CantidadCuotas != 0 && validate.Var(f.CantidadCuotas, fmt.Sprintf("min=1,max=%d", MaxCuotas)) != nil {
		put("cantidadCuotas", fmt.Sprintf("Cantidad de cuotas debe estar entre 1 y %d", MaxCuotas))
	}
	if f.Moneda != "" && validate.Var(f.Moneda, "oneof="+strings.Join(Currencies, " ")) != nil {
		put("moneda", fmt.Sprintf("Moneda debe ser una de %s", strings.Join(Currencies, ", ")))
	}
}

// MissingFieldsError blocks submission when required fields are empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "policyform: missing required fields: " + strings.Join(e.Fields, ", ")
}

// Unwrap exposes the classified error so apperr.KindOf and UserMessage work.
func (e *MissingFieldsError) Unwrap() error {
	labels := make([]string, len(e.Fields))
	for i, n := range e.Fields {
		labels[i] = Label(n)
	}
	return apperr.New(apperr.KindValidation, "policyform.check",
		"faltan campos obligatorios: "+strings.Join(labels, ", "))
}

// InvalidFormError blocks submission when rules other than required fail.
type InvalidFormError struct {
	Errors []ValidationError
}

func (e *InvalidFormError) Error() string {
	return fmt.Sprintf("policyform: %d validation errors", len(e.Errors))
}

func (e *InvalidFormError) Unwrap() error {
	msg := "el formulario tiene errores"
	if len(e.Errors) == 1 {
		msg = e.Errors[0].Message
	} else if len(e.Errors) > 1 {
		msg = fmt.Sprintf("el formulario tiene %d errores", len(e.Errors))
	}
	return apperr.New(apperr.KindValidation, "policyform.check", msg)
}

// CheckSubmittable returns nil when f may be sent to Velneo. Missing required
// fields take precedence and are all listed.
func CheckSubmittable(f Form) error {
	rep := Validate(f)
	if len(rep.MissingFields) > 0 {
		return &MissingFieldsError{Fields: rep.MissingFields}
	}
	if !rep.Valid() {
		return &InvalidFormError{Errors: rep.Errors}
	}
	return nil
}
