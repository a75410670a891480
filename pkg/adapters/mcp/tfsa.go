package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/teller/pkg/assistant/tfsa"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// TFSAWorkflow is the part of the TFSA assistant the server needs.
type TFSAWorkflow interface {
	Run(ctx context.Context, input, userID string, observer func(domain.Step)) (*tfsa.Result, error)
}

// RoomResponse answers check_contribution_room.
type RoomResponse struct {
	ContributionRoom *float64 `json:"contribution_room,omitempty" jsonschema_description:"Available TFSA contribution room in dollars"`
	UserID           string   `json:"user_id"`
	Timestamp        string   `json:"timestamp"`
	Error            string   `json:"error,omitempty"`
}

// ContributionResponse answers execute_contribution.
type ContributionResponse struct {
	Success             bool     `json:"success"`
	TransactionID       string   `json:"transaction_id,omitempty"`
	NewContributionRoom *float64 `json:"new_contribution_room,omitempty" jsonschema_description:"Room left after the contribution"`
	UserID              string   `json:"user_id"`
	Response            string   `json:"response,omitempty"`
	Timestamp           string   `json:"timestamp"`
	Error               string   `json:"error,omitempty"`
}

// AdviceResponse is the body of the tfsa-advice resource.
type AdviceResponse struct {
	Response           string   `json:"response"`
	ContributionRoom   *float64 `json:"contribution_room,omitempty"`
	ContributionAmount *float64 `json:"contribution_amount,omitempty"`
	TransactionID      string   `json:"transaction_id,omitempty"`
	UserID             string   `json:"user_id"`
	Timestamp          string   `json:"timestamp"`
	Error              string   `json:"error,omitempty"`
}

type userArgs struct {
	UserID string `json:"user_id"`
}

type requestArgs struct {
	UserInput string `json:"user_input"`
	UserID    string `json:"user_id"`
}

const tfsaRulesPrompt = `As a financial educator, explain TFSA rules focusing on:
- Contribution limits
- Withdrawal rules
- Tax implications

Structure:
1. Start with 1-sentence summary
2. Break into bullet points
3. End with practical example

Use simple language (grade 8 level).

Specific query: %s`

// NewTFSAServer exposes the TFSA assistant.
func NewTFSAServer(wf TFSAWorkflow, opts ...Option) *Server {
	s := newServer("TFSA Assistant API", "Real-time TFSA contribution advisor with CRA compliance.", opts)

	s.mcpServer.AddTool(mcp.NewTool("check_contribution_room",
		mcp.WithDescription("Check user's available TFSA contribution room"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("bank user ID")),
		mcp.WithOutputSchema[RoomResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, args userArgs) (RoomResponse, error) {
		res, err := wf.Run(ctx, "What's my contribution room?", args.UserID, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "contribution room check failed", "user_id", args.UserID, "err", err)
			return RoomResponse{Error: "Failed to check contribution room: " + err.Error(), UserID: args.UserID, Timestamp: s.timestamp()}, nil
		}
		return RoomResponse{ContributionRoom: &res.ContributionRoom, UserID: args.UserID, Timestamp: s.timestamp()}, nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("execute_contribution",
		mcp.WithDescription("Execute TFSA contribution transaction with an amount"),
		mcp.WithString("user_input", mcp.Required(), mcp.Description("User input contains a contribution transaction amount")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("bank user ID")),
		mcp.WithOutputSchema[ContributionResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, args requestArgs) (ContributionResponse, error) {
		fail := func(err error) (ContributionResponse, error) {
			s.logger.ErrorContext(ctx, "contribution failed", "user_id", args.UserID, "err", err)
			return ContributionResponse{Error: "Contribution failed: " + err.Error(), UserID: args.UserID, Timestamp: s.timestamp()}, nil
		}
		input, err := s.clean(args.UserInput)
		if err != nil {
			return fail(err)
		}
		res, err := wf.Run(ctx, input, args.UserID, nil)
		if err != nil {
			return fail(err)
		}

		out := ContributionResponse{
			Success:       res.TransactionID != "",
			TransactionID: res.TransactionID,
			UserID:        args.UserID,
			Response:      res.Response,
			Timestamp:     s.timestamp(),
		}
		room := res.ContributionRoom
		if out.Success {
			room = res.RemainingRoom
		}
		out.NewContributionRoom = &room
		return out, nil
	}))

	s.mcpServer.AddPrompt(mcp.NewPrompt("explain_tfsa_rules",
		mcp.WithPromptDescription("Explain TFSA rules in simple terms"),
		mcp.WithArgument("query", mcp.ArgumentDescription("The user's question"), mcp.RequiredArgument()),
	), func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult("Explain TFSA rules in simple terms", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(fmt.Sprintf(tfsaRulesPrompt, req.Params.Arguments["query"]))),
		}), nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate("tfsa-advice://{user_input}/{user_id}", "TFSA advice",
		mcp.WithTemplateDescription("Run the TFSA assistant for a query on behalf of a user"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		userID := templateArg(req, "user_id")
		if userID == "" {
			userID = banking.DemoTFSAUser
		}
		out := AdviceResponse{UserID: userID, Timestamp: s.timestamp()}

		input, err := s.clean(templateArg(req, "user_input"))
		if err == nil {
			var res *tfsa.Result
			if res, err = wf.Run(ctx, input, userID, nil); err == nil {
				out.Response = res.Response
				out.ContributionRoom = &res.ContributionRoom
				out.TransactionID = res.TransactionID
				if res.ContributionAmount > 0 {
					out.ContributionAmount = &res.ContributionAmount
				}
			}
		}
		if err != nil {
			out.Response = "❌ Processing error: " + err.Error()
			out.Error = err.Error()
		}
		return jsonContents(req.Params.URI, out)
	})

	s.mcpServer.AddResource(mcp.NewResource("tfsa-annual://limit", "TFSA annual dollar limit",
		mcp.WithResourceDescription("The annual TFSA dollar limit for each year since 2009"),
		mcp.WithMIMEType("text/plain"),
	), func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "text/plain", Text: banking.LimitsSummary()},
		}, nil
	})

	return s
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(body)},
	}, nil
}
