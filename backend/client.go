// Package backend is the REST client for the policy back-office API: login,
// clients, companies, policies and the document-intelligence proxy.
//
// Responses from this backend are loosely shaped (bare arrays or enveloped
// lists, several spellings of the same field), so bodies are probed with
// gjson instead of decoded into fixed structs.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/policyform"
)

// Config configures an API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	// OnUnauthorized is called with the bearer token whenever the backend
	// answers 401 to an authenticated call.
	OnUnauthorized func(token string)
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// API talks to the backend. It is safe for concurrent use.
type API struct {
	http           *resty.Client
	logger         *slog.Logger
	onUnauthorized func(string)
}

// New builds an API client. Retries are disabled; the only retry is the one the
// user triggers.
func New(cfg Config) *API {
	cfg.defaults()
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "polizas/1").
		SetRetryCount(0)
	return &API{http: rc, logger: cfg.Logger, onUnauthorized: cfg.OnUnauthorized}
}

// SetOnUnauthorized replaces the 401 hook. Used when the hook depends on a
// component built after the client.
func (c *API) SetOnUnauthorized(fn func(token string)) {
	c.onUnauthorized = fn
}

func (c *API) req(ctx context.Context, token string) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// Login authenticates against POST /auth/login.
func (c *API) Login(ctx context.Context, username, password string) (LoginResult, error) {
	const op = "backend.login"
	resp, err := c.req(ctx, "").
		SetBody(map[string]string{"username": username, "password": password}).
		Post("/auth/login")
	if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
		return LoginResult{}, apperr.New(apperr.KindAuth, op, "usuario o contraseña incorrectos")
	}
	if err := c.check(op, "", resp, err, apperr.KindServer); err != nil {
		return LoginResult{}, err
	}

	body := gjson.ParseBytes(resp.Body())
	token := str(body, "token", "accessToken", "access_token", "data.token", "jwt")
	if token == "" {
		return LoginResult{}, apperr.New(apperr.KindServer, op, "el servidor no devolvió un token de acceso")
	}
	user := userFrom(first(body, "user", "usuario", "data.user"))
	if user.Username == "" {
		user.Username = username
	}
	if user.ID == "" {
		user.ID = user.Username
	}
	return LoginResult{Token: token, User: user}, nil
}

// ListClients searches clients; an empty search lists the first page.
func (c *API) ListClients(ctx context.Context, token, search string) ([]Client, error) {
	r := c.req(ctx, token)
	if search != "" {
		r.SetQueryParam("busqueda", search)
	}
	resp, err := r.Get("/clientes")
	if err := c.check("backend.list_clients", token, resp, err, apperr.KindServer); err != nil {
		return nil, err
	}
	return decodeList(resp.Body(), clientFrom), nil
}

// GetClient fetches one client by id.
func (c *API) GetClient(ctx context.Context, token, id string) (Client, error) {
	resp, err := c.req(ctx, token).SetPathParam("id", id).Get("/clientes/{id}")
	if err := c.check("backend.get_client", token, resp, err, apperr.KindServer); err != nil {
		return Client{}, err
	}
	body := gjson.ParseBytes(resp.Body())
	if env := first(body, "data"); env.IsObject() {
		body = env
	}
	cl := clientFrom(body)
	if cl.ID == "" {
		cl.ID = id
	}
	return cl, nil
}

// ListCompanies lists the insurers available for new policies.
func (c *API) ListCompanies(ctx context.Context, token string) ([]Company, error) {
	resp, err := c.req(ctx, token).Get("/companies")
	if err := c.check("backend.list_companies", token, resp, err, apperr.KindServer); err != nil {
		return nil, err
	}
	return decodeList(resp.Body(), companyFrom), nil
}

// ListPolicies lists policies, optionally restricted to one client.
func (c *API) ListPolicies(ctx context.Context, token, clientID string) ([]PolicySummary, error) {
	r := c.req(ctx, token)
	if clientID != "" {
		r.SetQueryParam("clienteId", clientID)
	}
	resp, err := r.Get("/polizas")
	if err := c.check("backend.list_policies", token, resp, err, apperr.KindServer); err != nil {
		return nil, err
	}
	return decodeList(resp.Body(), policyFrom), nil
}

// ProcessDocument uploads a PDF to the document-intelligence proxy and
// returns the raw JSON response for the normalizer.
func (c *API) ProcessDocument(ctx context.Context, token, filename string, data []byte) ([]byte, error) {
	const op = "backend.process_document"
	resp, err := c.req(ctx, token).
		SetFileReader("file", filename, bytes.NewReader(data)).
		Post("/azuredocument/process")
	if err := c.check(op, token, resp, err, apperr.KindProcessing); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.Body()) {
		return nil, apperr.New(apperr.KindProcessing, op, "respuesta inválida del servicio de procesamiento")
	}
	return resp.Body(), nil
}

// SubmitPolicy creates the policy in Velneo through POST /polizas.
func (c *API) SubmitPolicy(ctx context.Context, token string, p policyform.VelneoPolicy) (SubmitResult, error) {
	resp, err := c.req(ctx, token).SetBody(p).Post("/polizas")
	if err := c.check("backend.submit_policy", token, resp, err, apperr.KindServer); err != nil {
		return SubmitResult{}, err
	}
	body := gjson.ParseBytes(resp.Body())
	res := SubmitResult{
		ID:           str(body, "id", "polizaId", "data.id"),
		NumeroPoliza: str(body, "numeroPoliza", "conpol", "data.numeroPoliza"),
		Message:      str(body, "message", "mensaje"),
	}
	if gjson.ValidBytes(resp.Body()) {
		res.Raw = append([]byte(nil), resp.Body()...)
	}
	if res.NumeroPoliza == "" {
		res.NumeroPoliza = p.NumeroPoliza
	}
	return res, nil
}

// check turns a transport error or non-2xx response into an *apperr.Error.
// failKind classifies 5xx and unexpected statuses for this call.
func (c *API) check(op, token string, resp *resty.Response, err error, failKind apperr.Kind) error {
	if err != nil {
		c.logger.Warn("backend: request failed", "op", op, "error", err)
		if isTimeout(err) {
			return apperr.Wrap(apperr.KindNetwork, op, "el servidor tardó demasiado en responder", err)
		}
		return apperr.Wrap(apperr.KindNetwork, op, "no se pudo conectar con el servidor", err)
	}

	status := resp.StatusCode()
	c.logger.Debug("backend: response", "op", op, "status", status, "duration_ms", resp.Time().Milliseconds())
	if status >= 200 && status < 300 {
		return nil
	}

	msg := backendMessage(resp.Body())
	cause := fmt.Errorf("status %d", status)
	switch {
	case status == http.StatusUnauthorized:
		if token != "" && c.onUnauthorized != nil {
			c.onUnauthorized(token)
		}
		return apperr.Wrap(apperr.KindAuth, op, "sesión expirada, inicie sesión nuevamente", cause)
	case failKind == apperr.KindProcessing:
		if msg == "" {
			msg = "no se pudo procesar el documento"
		}
		return apperr.Wrap(apperr.KindProcessing, op, msg, cause)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "el servidor rechazó los datos enviados"
		}
		return apperr.Wrap(apperr.KindValidation, op, msg, cause)
	case status == http.StatusNotFound:
		if msg == "" {
			msg = "recurso no encontrado"
		}
		return apperr.Wrap(apperr.KindNotFound, op, msg, cause)
	default:
		return apperr.Wrap(failKind, op, "error del servidor, intente nuevamente más tarde", cause)
	}
}

func backendMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return str(gjson.ParseBytes(body), "message", "mensaje", "error", "title", "detail")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decodeList accepts a bare array or an envelope holding the array under
// data, items or results.
func decodeList[T any](body []byte, conv func(gjson.Result) T) []T {
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		for _, p := range []string{"data", "items", "results", "data.items", "data.results"} {
			if v := root.Get(p); v.IsArray() {
				root = v
				break
			}
		}
	}
	out := []T{}
	if !root.IsArray() {
		return out
	}
	root.ForEach(func(_, v gjson.Result) bool {
		out = append(out, conv(v))
		return true
	})
	return out
}
