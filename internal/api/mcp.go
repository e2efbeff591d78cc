package api

import (
	"encoding/json"
	"net/http"

	"github.com/sells-group/portfolio-cli/internal/report"
)

// Tool describes a callable tool in the MCP listing.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

const toolGetPortfolio = "get_portfolio"

var tools = []Tool{
	{
		Name:        toolGetPortfolio,
		Description: "Return the latest portfolio snapshot with totals, risk level and allocation.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	},
}

type toolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (h *handler) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *handler) callTool(w http.ResponseWriter, r *http.Request) {
	var call toolCall
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&call); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch call.Tool {
	case toolGetPortfolio:
		h.getLatestResult(w, r)
	case "":
		writeError(w, http.StatusBadRequest, "tool is required")
	default:
		writeError(w, http.StatusNotFound, "unknown tool: "+call.Tool)
	}
}

func (h *handler) getLatestResult(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.FindLatest(r.Context())
	if err != nil {
		h.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": report.Summarize(p)})
}
