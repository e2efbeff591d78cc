package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/report"
	"github.com/sells-group/portfolio-cli/internal/store"
)

const dateLayout = "2006-01-02"

func (h *handler) getLatest(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.FindLatest(r.Context())
	if err != nil {
		h.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(p))
}

func (h *handler) getPortfolioAt(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "at is required (RFC 3339 timestamp)")
		return
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
		return
	}

	p, err := h.repo.FindByDate(r.Context(), at)
	if err != nil {
		h.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(p))
}

// getHistory lists snapshots between two UTC calendar dates, both inclusive.
func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	ps, err := h.repo.FindByDateRange(r.Context(), from, endOfDay(to))
	if err != nil {
		h.repoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":      from.Format(dateLayout),
		"to":        to.Format(dateLayout),
		"snapshots": report.SummarizeAll(ps),
	})
}

func endOfDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func (h *handler) repoError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no portfolio snapshot found")
		return
	}
	setErrorMessage(w, err.Error())
	zap.L().Error("api: repository lookup failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	if kind, ok := model.KindOf(err); ok {
		writeError(w, http.StatusInternalServerError, string(kind))
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}
