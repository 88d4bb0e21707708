package http

import (
	"net/http"

	"clubfin/internal/core"
	"clubfin/internal/fiscal"
	applog "clubfin/internal/log"
	"clubfin/internal/repository"
	"clubfin/internal/services"
)

// saveBody is a transaction plus the optional completion flag.
type saveBody struct {
	core.Transaction
	MarkItemComplete bool `json:"markItemComplete,omitempty"`
}

type resultBody struct {
	Transaction core.Transaction `json:"transaction"`
	Warnings    []string         `json:"warnings"`
	FiscalYears []int            `json:"fiscalYears"`
}

func newResultBody(res services.Result) resultBody {
	warnings := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, w.Error())
	}
	years := res.FiscalYears
	if years == nil {
		years = []int{}
	}
	return resultBody{Transaction: res.Transaction, Warnings: warnings, FiscalYears: years}
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	ctx := r.Context()
	actor, err := ActorFromRequest(r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	var body saveBody
	if err := DecodeJSON(r, &body); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	switch {
	case id == "" && body.ID != "":
		BadRequestError("id is assigned by the server").Write(w)
		return
	case id != "" && body.ID != "" && body.ID != id:
		BadRequestError("id in body does not match the path").Write(w)
		return
	}
	body.ID = id

	op := applog.OpCreate
	if id != "" {
		op = applog.OpUpdate
	}
	res, err := s.deps.Transactions.Save(ctx, actor, services.SaveRequest{
		Transaction:      body.Transaction,
		MarkItemComplete: body.MarkItemComplete,
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogWarnings(ctx, op, res.Transaction.ID, res.Warnings)

	NewJSONResponse().Status(status).Body(newResultBody(res)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := ActorFromRequest(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	res, err := s.deps.Transactions.Delete(ctx, actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogWarnings(ctx, applog.OpDelete, res.Transaction.ID, res.Warnings)

	NewJSONResponse().Body(newResultBody(res)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

// handleListTransactions lists one fiscal year, the current one by default.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	fy, err := optionalFiscalYear(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if fy == 0 {
		fy = fiscal.YearOf(s.deps.Now())
	}
	txs, err := repository.ListTransactions(r.Context(), s.deps.Store, fy)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(map[string]any{"fiscalYear": fy, "transactions": txs}).Write(w)
}
