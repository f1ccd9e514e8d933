package policyform

import "time"

// DocumentMeta identifies the source PDF of a policy.
type DocumentMeta struct {
	Filename string `json:"nombreArchivo"`
	SHA256   string `json:"hashArchivo"`
	Pages    int    `json:"paginas"`
}

// VelneoPolicy is the body posted to POST /polizas.
type VelneoPolicy struct {
	ClienteID  string `json:"clienteId"`
	CompaniaID string `json:"companiaId"`

	Form

	Archivo   DocumentMeta `json:"archivo"`
	Confianza float64      `json:"confianzaExtraccion"`
	Origen    string       `json:"origen"`
	Procesado time.Time    `json:"fechaProcesamiento"`
}

// BuildVelneoPolicy assembles the outbound body from a sanitized form.
func BuildVelneoPolicy(clientID, companyID string, f Form, doc DocumentMeta, confidence float64) VelneoPolicy {
	return VelneoPolicy{
		ClienteID:  clientID,
		CompaniaID: companyID,
		Form:       Sanitize(f),
		Archivo:    doc,
		Confianza:  confidence,
		Origen:     "polizas",
		Procesado:  now().UTC(),
	}
}
