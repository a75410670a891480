package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/presentation/graph"
	"github.com/aretw0/teller/internal/sanitize"
	"github.com/aretw0/teller/pkg/domain"
	workflow "github.com/aretw0/teller/pkg/graph"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
)

// NDJSONContentType selects step streaming on workflow endpoints.
const NDJSONContentType = "application/x-ndjson"

// WorkflowRequest is the body of the workflow endpoints.
type WorkflowRequest struct {
	Query  string `json:"query" validate:"required,max=4096"`
	UserID string `json:"user_id" validate:"omitempty,max=64,printascii"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
	UserID  string `json:"user_id" validate:"omitempty,max=64,printascii"`
}

// StreamEvent is one NDJSON line. Error events also carry the run identity.
type StreamEvent struct {
	Type      string         `json:"type"`
	Node      string         `json:"node,omitempty"`
	Update    *domain.Update `json:"update,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads and validates a JSON body. It writes the error response
// itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			writeError(w, http.StatusBadRequest, "validation failed", details...)
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func (s *Server) clean(w http.ResponseWriter, input string) (string, bool) {
	clean, err := sanitize.Input(input, s.cfg.MaxInputSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", err.Error())
		return "", false
	}
	return clean, true
}

func (s *Server) workflowHandler(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WorkflowRequest
		if !s.decode(w, r, &req) {
			return
		}
		input, ok := s.clean(w, req.Query)
		if !ok {
			return
		}

		run := ep.Workflow.Stream(r.Context(), input, req.UserID)
		if strings.Contains(r.Header.Get("Accept"), NDJSONContentType) {
			s.stream(w, r, run, ep)
			return
		}

		for range run.Steps() {
		}
		if err := run.Err(); err != nil {
			s.runFailed(w, r, ep, run, err)
			return
		}
		writeJSON(w, http.StatusOK, ep.Result(run.State()))
	}
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, run *teller.Execution, ep Endpoint) {
	w.Header().Set("Content-Type", NDJSONContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(ev StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			s.logger.WarnContext(r.Context(), "stream write failed", "err", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for step := range run.Steps() {
		update := step.Update
		emit(StreamEvent{Type: "step", Node: step.Node, Update: &update})
	}
	if err := run.Err(); err != nil {
		userID := run.State().String("user_id")
		s.logger.ErrorContext(r.Context(), "workflow failed", "workflow", ep.Workflow.Name(), "user_id", userID, "run_id", run.RunID(), "err", err)
		emit(StreamEvent{Type: "error", Error: err.Error(), UserID: userID, RunID: run.RunID(), Timestamp: s.cfg.Clock()})
		return
	}
	emit(StreamEvent{Type: "result", Result: ep.Result(run.State())})
}

func (s *Server) runFailed(w http.ResponseWriter, r *http.Request, ep Endpoint, run *teller.Execution, err error) {
	userID := run.State().String("user_id")
	s.logger.ErrorContext(r.Context(), "workflow failed", "workflow", ep.Workflow.Name(), "user_id", userID, "run_id", run.RunID(), "err", err)
	writeJSON(w, statusFor(err), errorResponse{
		Error:     err.Error(),
		Service:   ep.Workflow.Name(),
		UserID:    userID,
		RunID:     run.RunID(),
		Timestamp: s.cfg.Clock(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, sanitize.ErrInputTooLarge), errors.Is(err, sanitize.ErrInvalidUTF8), errors.Is(err, sanitize.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, ok := s.clean(w, req.Message)
	if !ok {
		return
	}
	reply, err := s.cfg.Chat.Handle(r.Context(), msg, req.UserID)
	if err != nil {
		out := reply.Outcome
		if out.UserID == "" {
			out.UserID = req.UserID
		}
		if out.Timestamp.IsZero() {
			out.Timestamp = s.cfg.Clock()
		}
		s.logger.ErrorContext(r.Context(), "chat failed", "service", reply.Service, "user_id", out.UserID, "run_id", out.RunID, "err", err)
		writeJSON(w, statusFor(err), errorResponse{
			Error:     err.Error(),
			Service:   reply.Service,
			UserID:    out.UserID,
			RunID:     out.RunID,
			Timestamp: out.Timestamp,
		})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// GraphParams are the query parameters of GET /v1/workflows/{name}/graph.
type GraphParams struct {
	// Highlight marks visited nodes. The last one is drawn as current.
	Highlight *[]string `form:"highlight,omitempty" json:"highlight,omitempty"`
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid parameter", err.Error())
		return
	}
	var params GraphParams
	if err := runtime.BindQueryParameter("form", false, false, "highlight", r.URL.Query(), &params.Highlight); err != nil {
		writeError(w, http.StatusBadRequest, "invalid parameter", err.Error())
		return
	}

	for _, ep := range []Endpoint{s.cfg.TFSA, s.cfg.Transfer} {
		if ep.Workflow != nil && ep.Workflow.Name() == name {
			w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
			_, _ = w.Write([]byte(graph.GenerateMermaid(ep.Workflow.Graph(), overlayFor(ep.Workflow.Graph(), params))))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown workflow %q", name))
}

// overlayFor keeps only highlighted names that are nodes of g.
func overlayFor(g *workflow.Graph, p GraphParams) *graph.GraphOverlay {
	if p.Highlight == nil {
		return nil
	}
	known := make(map[string]bool)
	for _, n := range g.Nodes() {
		known[n] = true
	}
	var nodes []string
	for _, n := range *p.Highlight {
		if known[n] {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	return &graph.GraphOverlay{VisitedNodes: nodes, CurrentNode: nodes[len(nodes)-1]}
}
