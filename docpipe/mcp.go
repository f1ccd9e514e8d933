package docpipe

import (
	"context"
	"errors"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/polizas/kit"
)

type inspectRequest struct {
	Path string `json:"path"`
}

// RegisterMCP exposes the intake checks as the docpipe_inspect tool. mws
// wrap the endpoint, first listed outermost.
func (p *Pipeline) RegisterMCP(srv *mcp.Server, mws ...kit.Middleware) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_inspect",
		Description: "Check that a local file would be accepted as a policy PDF and report its page count, hash, text preview and scan quality.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Path of the PDF file"},
			},
			"required": []string{"path"},
		},
	}, kit.Chain(mws...)(p.inspectEndpoint()), kit.DecodeArgs[inspectRequest])
}

func (p *Pipeline) inspectEndpoint() kit.Endpoint {
	return func(_ context.Context, req any) (any, error) {
		r := req.(*inspectRequest)
		if r.Path == "" {
			return nil, errors.New("path is required")
		}
		f, err := os.Open(r.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return p.ReadUpload(f, r.Path)
	}
}
