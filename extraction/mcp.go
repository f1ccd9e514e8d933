package extraction

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/polizas/kit"
)

type normalizeRequest struct {
	// Raw is the response object, or a string holding it.
	Raw json.RawMessage `json:"raw"`
}

// RegisterMCP exposes the normalizer as the extraction_normalize tool.
func (n *Normalizer) RegisterMCP(srv *mcp.Server, mws ...kit.Middleware) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "extraction_normalize",
		Description: "Normalize a raw document-intelligence response for an insurance policy into the canonical policy fields. Reports which JSON path produced each field.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"raw": map[string]any{
					"description": "The raw response, as a JSON object or as a string containing JSON",
				},
			},
			"required": []string{"raw"},
		},
	}, kit.Chain(mws...)(n.normalizeEndpoint()), kit.DecodeArgs[normalizeRequest])
}

func (n *Normalizer) normalizeEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*normalizeRequest)
		raw := []byte(r.Raw)
		if len(raw) == 0 || string(raw) == "null" {
			return nil, errors.New("raw is required")
		}
		var s string
		if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
			raw = []byte(s)
		}
		res := n.Normalize(raw)
		res.Raw = nil
		return res, nil
	}
}
