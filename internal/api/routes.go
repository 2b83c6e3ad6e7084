package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/inventory"
	"github.com/roach88/bakehouse/internal/ledger"
	"github.com/roach88/bakehouse/internal/production"
	"github.com/roach88/bakehouse/internal/reconcile"
	"github.com/roach88/bakehouse/internal/sales"
	"github.com/roach88/bakehouse/internal/store"
)

// Services are the domain services the API exposes.
type Services struct {
	Inventory  *inventory.Service
	Counts     *reconcile.Service
	Sales      *sales.Service
	Production *production.Service
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	svc      Services
	resolver ActorResolver
	health   Pinger
	log      *zap.Logger
}

func (h *handlers) routes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Get("/{id}", h.getItem)
		r.Put("/{id}", h.updateItem)
		r.Delete("/{id}", h.deactivateItem)
		r.Get("/{id}/movements", h.itemMovements)
	})
	r.Get("/locations", h.listLocations)
	r.Post("/locations", h.createLocation)
	r.Get("/stock", h.stock)
	r.Get("/stock/low", h.lowStock)
	r.Get("/movements", h.listMovements)
	r.Post("/movements", h.recordMovement)
	r.Post("/transfers", h.transfer)
	r.Route("/counts", func(r chi.Router) {
		r.Get("/", h.listCounts)
		r.Post("/", h.openCount)
		r.Get("/{id}", h.getCount)
		r.Put("/{id}/lines/{item}", h.recordCount)
		r.Post("/{id}/submit", h.submitCount)
		r.Get("/{id}/report", h.countReport)
		r.Post("/{id}/approve", h.approveCount)
		r.Post("/{id}/reject", h.rejectCount)
		r.Post("/{id}/cancel", h.cancelCount)
	})
	r.Post("/sales", h.recordSale)
	r.Get("/sales/summary", h.salesSummary)
	r.Get("/recipes", h.listRecipes)
	r.Post("/recipes", h.createRecipe)
	r.Post("/production", h.logBatch)
	r.Get("/ledger/verify", h.verify)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Items

func (h *handlers) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{ActiveOnly: q.Get("active") == "true", Category: ledger.Category(q.Get("category"))}
	items, err := h.svc.Inventory.ListItems(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handlers) createItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.ItemInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.svc.Inventory.CreateItem(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *handlers) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Inventory.ResolveItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.ItemInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.svc.Inventory.UpdateItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *handlers) deactivateItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Inventory.DeactivateItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *handlers) itemMovements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if limit == 0 {
		limit = 50
	}
	ms, err := h.svc.Inventory.History(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), int(limit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// Locations and stock

func (h *handlers) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.svc.Inventory.ListLocations(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *handlers) createLocation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	loc, err := h.svc.Inventory.CreateLocation(r.Context(), actorFrom(r.Context()), in.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *handlers) stock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Inventory.StockOnHand(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("location"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) lowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Inventory.LowStock(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Movements

func (h *handlers) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := queryInt(r, "after")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f := store.MovementFilter{
		ItemID:     q.Get("item"),
		LocationID: q.Get("location"),
		CountID:    q.Get("count"),
		TransferID: q.Get("transfer"),
		AfterSeq:   after,
		Limit:      int(limit),
	}
	ms, err := h.svc.Inventory.Movements(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *handlers) recordMovement(w http.ResponseWriter, r *http.Request) {
	var in inventory.RecordInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Inventory.Record(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	var in inventory.TransferInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Inventory.Transfer(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Counts

func (h *handlers) listCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SessionFilter{Status: ledger.CountStatus(q.Get("status")), LocationID: q.Get("location")}
	sessions, err := h.svc.Counts.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *handlers) openCount(w http.ResponseWriter, r *http.Request) {
	var in reconcile.OpenInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.svc.Counts.Open(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *handlers) getCount(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Counts.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handlers) recordCount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Counted ledger.Quantity `json:"counted"`
	}
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	line, err := h.svc.Counts.RecordCount(r.Context(), actorFrom(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "item"), in.Counted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *handlers) submitCount(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Counts.Submit(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) countReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Counts.Report(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) approveCount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Digest string `json:"digest"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	d, err := h.svc.Counts.Approve(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in.Digest)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) rejectCount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.svc.Counts.Reject(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) cancelCount(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Counts.Cancel(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Sales and production

func (h *handlers) recordSale(w http.ResponseWriter, r *http.Request) {
	var in sales.RecordInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.svc.Sales.Record(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) salesSummary(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.svc.Sales.Summary(r.Context(), actorFrom(r.Context()), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *handlers) listRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.svc.Production.ListRecipes(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *handlers) createRecipe(w http.ResponseWriter, r *http.Request) {
	var in production.RecipeInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.svc.Production.CreateRecipe(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) logBatch(w http.ResponseWriter, r *http.Request) {
	var in production.BatchInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Production.LogBatch(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Inventory.Verify(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !rep.OK() {
		status = http.StatusConflict
	}
	writeJSON(w, status, rep)
}
