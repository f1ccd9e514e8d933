package backend

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// User is the authenticated operator as reported by the backend.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
}

// LoginResult is the outcome of a successful backend login.
type LoginResult struct {
	Token string `json:"-"`
	User  User   `json:"user"`
}

// Client is an insured party (cliente) known to Velneo.
type Client struct {
	ID        string `json:"id"`
	Nombre    string `json:"nombre"`
	Documento string `json:"documento,omitempty"`
	Email     string `json:"email,omitempty"`
	Telefono  string `json:"telefono,omitempty"`
	Direccion string `json:"direccion,omitempty"`
	Localidad string `json:"localidad,omitempty"`
}

// Company is an insurer (compañía).
type Company struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Codigo string `json:"codigo,omitempty"`
}

// PolicySummary is one row of the dashboard policy list.
type PolicySummary struct {
	ID            string  `json:"id"`
	NumeroPoliza  string  `json:"numeroPoliza"`
	ClienteID     string  `json:"clienteId,omitempty"`
	Compania      string  `json:"compania,omitempty"`
	Ramo          string  `json:"ramo,omitempty"`
	VigenciaDesde string  `json:"vigenciaDesde,omitempty"`
	VigenciaHasta string  `json:"vigenciaHasta,omitempty"`
	Estado        string  `json:"estado,omitempty"`
	Premio        float64 `json:"premio,omitempty"`
}

// SubmitResult is the backend's answer to a policy creation.
type SubmitResult struct {
	ID           string          `json:"id"`
	NumeroPoliza string          `json:"numeroPoliza,omitempty"`
	Message      string          `json:"message,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// first returns the first existing, non-empty value among paths.
func first(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v
		}
	}
	return gjson.Result{}
}

func str(r gjson.Result, paths ...string) string {
	return first(r, paths...).String()
}

func userFrom(r gjson.Result) User {
	return User{
		ID:          str(r, "id", "userId", "Id", "usuarioId"),
		Username:    str(r, "username", "userName", "usuario", "login", "email"),
		DisplayName: str(r, "displayName", "nombre", "name", "fullName"),
		Email:       str(r, "email", "mail"),
		Role:        str(r, "role", "rol", "roles.0"),
	}
}

func clientFrom(r gjson.Result) Client {
	return Client{
		ID:        str(r, "id", "clienteId", "Id", "clicod"),
		Nombre:    str(r, "nombre", "name", "razonSocial", "clinom", "nombreCompleto"),
		Documento: str(r, "documento", "cedula", "rut", "cliced", "clirut"),
		Email:     str(r, "email", "mail", "cliemail"),
		Telefono:  str(r, "telefono", "phone", "celular", "clitelcel"),
		Direccion: str(r, "direccion", "domicilio", "address", "clidir"),
		Localidad: str(r, "localidad", "ciudad", "clidptnom"),
	}
}

func companyFrom(r gjson.Result) Company {
	return Company{
		ID:     str(r, "id", "companyId", "Id", "comcod"),
		Nombre: str(r, "nombre", "name", "comnom", "razonSocial"),
		Codigo: str(r, "codigo", "code", "comalias", "alias"),
	}
}

func policyFrom(r gjson.Result) PolicySummary {
	return PolicySummary{
		ID:            str(r, "id", "polizaId", "Id"),
		NumeroPoliza:  str(r, "numeroPoliza", "numero", "conpol", "policyNumber"),
		ClienteID:     str(r, "clienteId", "clientId", "clinro"),
		Compania:      str(r, "compania", "company", "companiaNombre", "comnom"),
		Ramo:          str(r, "ramo", "seccion", "branch"),
		VigenciaDesde: str(r, "vigenciaDesde", "confchdes", "startDate"),
		VigenciaHasta: str(r, "vigenciaHasta", "confchhas", "endDate"),
		Estado:        str(r, "estado", "status", "conest"),
		Premio:        first(r, "premio", "conpremio", "premium").Float(),
	}
}
