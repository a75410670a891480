package mcp

import (
	"context"

	"github.com/aretw0/teller/pkg/assistant/etransfer"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// TransferWorkflow is the part of the e-Transfer assistant the server needs.
type TransferWorkflow interface {
	Run(ctx context.Context, input, userID string, observer func(domain.Step)) (*etransfer.Result, error)
}

// LimitResponse answers check_e_transfer_limit.
type LimitResponse struct {
	CurrentLimit *float64 `json:"current_limit,omitempty" jsonschema_description:"Current daily e-Transfer limit in dollars"`
	UserID       string   `json:"user_id"`
	Timestamp    string   `json:"timestamp"`
	Error        string   `json:"error,omitempty"`
}

// IncreaseResponse answers increase_limit and the etransfer-service resource.
type IncreaseResponse struct {
	Success       bool     `json:"success"`
	NewLimit      *float64 `json:"new_limit,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Response      string   `json:"response,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	UserID        string   `json:"user_id"`
	Timestamp     string   `json:"timestamp"`
	Error         string   `json:"error,omitempty"`
}

// NewTransferServer exposes the e-Transfer assistant.
func NewTransferServer(wf TransferWorkflow, opts ...Option) *Server {
	s := newServer("E-Transfer Limit Increase MCP Server", "Agentic banking service for e-Transfer limit increase requests.", opts)

	s.mcpServer.AddTool(mcp.NewTool("check_e_transfer_limit",
		mcp.WithDescription("Check user's e-Transfer limit"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("bank user ID")),
		mcp.WithOutputSchema[LimitResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (LimitResponse, error) {
		res, err := wf.Run(ctx, "What's my e-Transfer limit?", args.UserID, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "limit check failed", "user_id", args.UserID, "err", err)
			return LimitResponse{Error: "Failed to check current e-transfer limit: " + err.Error(), UserID: args.UserID, Timestamp: s.timestamp()}, nil
		}
		return LimitResponse{CurrentLimit: &res.CurrentLimit, UserID: args.UserID, Timestamp: s.timestamp()}, nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("increase_limit",
		mcp.WithDescription("Handle an e-Transfer limit increase request"),
		mcp.WithString("user_input", mcp.Required(), mcp.Description("The customer's request")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("bank user ID")),
		mcp.WithOutputSchema[IncreaseResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, args requestArgs) (IncreaseResponse, error) {
		return s.increase(ctx, wf, args.UserInput, args.UserID), nil
	}))

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate("etransfer-service://{user_input}/{user_id}", "e-Transfer service",
		mcp.WithTemplateDescription("Handle an e-Transfer related request on behalf of a user"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		userID := templateArg(req, "user_id")
		if userID == "" {
			userID = banking.DemoTransferUser
		}
		return jsonContents(req.Params.URI, s.increase(ctx, wf, templateArg(req, "user_input"), userID))
	})

	return s
}

func (s *Server) increase(ctx context.Context, wf TransferWorkflow, rawInput, userID string) IncreaseResponse {
	out := IncreaseResponse{UserID: userID, Timestamp: s.timestamp()}

	input, err := s.clean(rawInput)
	if err != nil {
		out.Error = "Increase limit failed: " + err.Error()
		return out
	}
	res, err := wf.Run(ctx, input, userID, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "limit increase failed", "user_id", userID, "err", err)
		out.Error = "Increase limit failed: " + err.Error()
		return out
	}

	out.Response = res.Response
	if res.NewLimit > 0 {
		out.Success = true
		out.NewLimit = &res.NewLimit
		out.TransactionID = res.ReferenceID
		return out
	}
	out.Reason = res.Explanation
	if out.Reason == "" {
		out.Reason = "Eligibility check failed"
	}
	return out
}
