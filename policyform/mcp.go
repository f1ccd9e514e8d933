package policyform

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/polizas/kit"
)

type validateRequest struct {
	Form Form `json:"form"`
}

// RegisterMCP exposes Validate as the policyform_validate tool.
func RegisterMCP(srv *mcp.Server, mws ...kit.Middleware) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "policyform_validate",
		Description: "Validate an insurance policy form. Returns field errors in tab order, per-tab completion and the missing required fields.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"form": map[string]any{
					"type":        "object",
					"description": "Policy form keyed by field name (numeroPoliza, asegurado, vigenciaDesde, ...)",
				},
			},
			"required": []string{"form"},
		},
	}, kit.Chain(mws...)(validateEndpoint), kit.DecodeArgs[validateRequest])
}

func validateEndpoint(_ context.Context, req any) (any, error) {
	r := req.(*validateRequest)
	rep := Validate(r.Form)
	return struct {
		Report
		Valid bool `json:"valid"`
	}{rep, rep.Valid()}, nil
}
