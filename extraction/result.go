// Package extraction turns the document-intelligence response for a policy
// PDF into a canonical, flat record.
//
// The response shape is not stable: a field may sit at the top level, inside
// one of several "extracted fields" bags, or in an Azure-style analyzeResult
// with {valueString, content, confidence} wrappers, and under different
// names. Normalize resolves each target field through an ordered synonym
// list and keeps the first non-empty match.
package extraction

import (
	"encoding/json"

	"github.com/hazyhaar/polizas/apperr"
)

// Result is the normalized extraction of one policy document.
type Result struct {
	NumeroPoliza string `json:"numeroPoliza"`
	Asegurado    string `json:"asegurado"`
	Documento    string `json:"documento"`
	Email        string `json:"email"`
	Telefono     string `json:"telefono"`
	Direccion    string `json:"direccion"`
	Localidad    string `json:"localidad"`
	Departamento string `json:"departamento"`

	Ramo          string `json:"ramo"`
	Compania      string `json:"compania"`
	Corredor      string `json:"corredor"`
	FechaEmision  string `json:"fechaEmision"`
	VigenciaDesde string `json:"vigenciaDesde"`
	VigenciaHasta string `json:"vigenciaHasta"`

	VehiculoMarca       string `json:"vehiculoMarca"`
	VehiculoModelo      string `json:"vehiculoModelo"`
	VehiculoAnio        int    `json:"vehiculoAnio"`
	VehiculoMatricula   string `json:"vehiculoMatricula"`
	VehiculoMotor       string `json:"vehiculoMotor"`
	VehiculoChasis      string `json:"vehiculoChasis"`
	VehiculoCombustible string `json:"vehiculoCombustible"`

	Moneda         string  `json:"moneda"`
	FormaPago      string  `json:"formaPago"`
	Prima          float64 `json:"prima"`
	Premio         float64 `json:"premio"`
	MontoTotal     float64 `json:"montoTotal"`
	SumaAsegurada  float64 `json:"sumaAsegurada"`
	ValorCuota     float64 `json:"valorCuota"`
	CantidadCuotas int     `json:"cantidadCuotas"`

	Confidence         float64 `json:"confidence"`
	ReadyForSubmission bool    `json:"readyForSubmission"`

	// Failed marks the placeholder produced when processing failed.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`

	// Sources maps each resolved field to the JSON path it was read from.
	Sources map[string]string `json:"sources,omitempty"`
	Raw     json.RawMessage   `json:"raw,omitempty"`
}

// RequiredFields are the fields a policy cannot be created without.
var RequiredFields = []string{"numeroPoliza", "asegurado", "vigenciaDesde", "vigenciaHasta"}

// ReadyConfidence is the minimum confidence for a computed ready flag.
const ReadyConfidence = 0.7

// Failed returns the placeholder record used when document processing fails,
// so the user can still fill in the form by hand.
func Failed(err error) Result {
	msg := "no se pudo procesar el documento"
	if err != nil {
		if m := apperr.UserMessage(err); apperr.KindOf(err) != apperr.KindInternal {
			msg = m
		}
	}
	return Result{Failed: true, Error: msg}
}

// Resolved lists, in field order, the fields holding a non-zero value.
func (r *Result) Resolved() []string {
	var out []string
	for _, f := range fields {
		if !f.isZero(r) {
			out = append(out, f.name)
		}
	}
	return out
}

// Missing lists the required fields that were not resolved.
func (r *Result) Missing() []string {
	var out []string
	for _, name := range RequiredFields {
		if f, ok := fieldByName[name]; ok && f.isZero(r) {
			out = append(out, name)
		}
	}
	return out
}
