// Package policyform holds the editable policy form: seeding it from an
// extraction, applying user edits, validating it tab by tab, and building the
// body posted to Velneo.
package policyform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/extraction"
)

// Form is the editable superset of the extracted fields.
type Form struct {
	NumeroPoliza  string `json:"numeroPoliza"`
	Ramo          string `json:"ramo"`
	Compania      string `json:"compania"`
	Corredor      string `json:"corredor"`
	FechaEmision  string `json:"fechaEmision"`
	VigenciaDesde string `json:"vigenciaDesde"`
	VigenciaHasta string `json:"vigenciaHasta"`
	Endoso        string `json:"endoso"`
	Cobertura     string `json:"cobertura"`

	Asegurado    string `json:"asegurado"`
	Documento    string `json:"documento"`
	Email        string `json:"email"`
	Telefono     string `json:"telefono"`
	Direccion    string `json:"direccion"`
	Localidad    string `json:"localidad"`
	Departamento string `json:"departamento"`

	VehiculoMarca       string `json:"vehiculoMarca"`
	VehiculoModelo      string `json:"vehiculoModelo"`
	VehiculoAnio        int    `json:"vehiculoAnio"`
	VehiculoMatricula   string `json:"vehiculoMatricula"`
	VehiculoMotor       string `json:"vehiculoMotor"`
	VehiculoChasis      string `json:"vehiculoChasis"`
	VehiculoCombustible string `json:"vehiculoCombustible"`
	Zona                string `json:"zona"`
	Uso                 string `json:"uso"`

	Moneda         string  `json:"moneda"`
	FormaPago      string  `json:"formaPago"`
	Prima          float64 `json:"prima"`
	Premio         float64 `json:"premio"`
	MontoTotal     float64 `json:"montoTotal"`
	SumaAsegurada  float64 `json:"sumaAsegurada"`
	ValorCuota     float64 `json:"valorCuota"`
	CantidadCuotas int     `json:"cantidadCuotas"`

	Observaciones string `json:"observaciones"`
}

// FromExtraction seeds a form from a normalized extraction. A failed
// extraction yields an empty form.
func FromExtraction(r extraction.Result) Form {
	return Form{
		NumeroPoliza:  r.NumeroPoliza,
		Ramo:          r.Ramo,
		Compania:      r.Compania,
		Corredor:      r.Corredor,
		FechaEmision:  r.FechaEmision,
		VigenciaDesde: r.VigenciaDesde,
		VigenciaHasta: r.VigenciaHasta,

		Asegurado:    r.Asegurado,
		Documento:    r.Documento,
		Email:        r.Email,
		Telefono:     r.Telefono,
		Direccion:    r.Direccion,
		Localidad:    r.Localidad,
		Departamento: r.Departamento,

		VehiculoMarca:       r.VehiculoMarca,
		VehiculoModelo:      r.VehiculoModelo,
		VehiculoAnio:        r.VehiculoAnio,
		VehiculoMatricula:   r.VehiculoMatricula,
		VehiculoMotor:       r.VehiculoMotor,
		VehiculoChasis:      r.VehiculoChasis,
		VehiculoCombustible: r.VehiculoCombustible,

		Moneda:         r.Moneda,
		FormaPago:      r.FormaPago,
		Prima:          r.Prima,
		Premio:         r.Premio,
		MontoTotal:     r.MontoTotal,
		SumaAsegurada:  r.SumaAsegurada,
		ValorCuota:     r.ValorCuota,
		CantidadCuotas: r.CantidadCuotas,
	}
}

// Set applies one user edit by JSON field name. Strings are trimmed, dates
// are normalized to YYYY-MM-DD when recognizable, and numbers may be given as
// JSON numbers or text. nil clears the field.
func (f *Form) Set(name string, value any) error {
	const op = "policyform.set"
	fd, ok := byName[name]
	if !ok {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("campo desconocido: %s", name))
	}
	switch {
	case fd.str != nil:
		s, err := asString(value)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, fmt.Sprintf("%s: valor inválido", fd.label), err)
		}
		*fd.str(f) = fd.clean(s)
	case fd.num != nil:
		x, err := asFloat(value)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, fmt.Sprintf("%s: debe ser un número", fd.label), err)
		}
		*fd.num(f) = x
	default:
		n, err := asInt(value)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, fmt.Sprintf("%s: debe ser un número entero", fd.label), err)
		}
		*fd.in(f) = n
	}
	return nil
}

// Apply sets every entry of edits. Valid entries are applied even when others
// fail; the first failure is returned.
func (f *Form) Apply(edits map[string]any) error {
	var first error
	for _, fd := range formFields {
		v, ok := edits[fd.name]
		if !ok {
			continue
		}
		if err := f.Set(fd.name, v); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return first
	}
	for name := range edits {
		if _, ok := byName[name]; !ok {
			return apperr.New(apperr.KindValidation, "policyform.apply", fmt.Sprintf("campo desconocido: %s", name))
		}
	}
	return nil
}

// Get returns the value of a field by JSON name.
func (f *Form) Get(name string) (any, bool) {
	fd, ok := byName[name]
	if !ok {
		return nil, false
	}
	switch {
	case fd.str != nil:
		return *fd.str(f), true
	case fd.num != nil:
		return *fd.num(f), true
	default:
		return *fd.in(f), true
	}
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return "", fmt.Errorf("unexpected boolean")
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return decimal.NewFromFloat(x).Round(2).InexactFloat64(), nil
	case int:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		if strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
			return 0, fmt.Errorf("no digits in %q", s)
		}
		return extraction.ParseAmount(s), nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not whole", x)
		}
		return int(x), nil
	case int:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
