package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diewo77/invoicer/httpx"
	"github.com/diewo77/invoicer/i18n"
	"github.com/diewo77/invoicer/internal/logger"
	"github.com/diewo77/invoicer/internal/middleware"
	"github.com/diewo77/invoicer/internal/models"
	"github.com/diewo77/invoicer/internal/pdf"
	"github.com/diewo77/invoicer/internal/services"
	"github.com/diewo77/invoicer/view"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// rangeOptions are the listing windows offered by the dashboard filter.
var rangeOptions = []string{"7", "30", "90"}

type InvoiceHandler struct {
	svc *services.InvoiceService
	log *zap.Logger
}

func NewInvoiceHandler(svc *services.InvoiceService, log *zap.Logger) *InvoiceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceHandler{svc: svc, log: log}
}

// New renders the empty entry form.
func (h *InvoiceHandler) New(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", map[string]any{
		"Title": i18n.T(middleware.LangFrom(r), "invoice.new"),
		"Form":  services.InvoiceInput{},
		"Flash": middleware.TakeFlash(w, r),
	})
}

// Preview shows the computed invoice without saving it.
func (h *InvoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	inv, err := h.svc.Preview(in)
	if err != nil {
		h.fail(w, r, err, "index.html", map[string]any{"Form": in})
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	h.render(w, r, http.StatusOK, "preview.html", map[string]any{
		"Title":   i18n.T(middleware.LangFrom(r), "invoice.preview"),
		"Invoice": inv,
		"Form":    in,
	})
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "index.html", map[string]any{"Form": in})
		return
	}
	if httpx.WantsJSON(r) {
		w.Header().Set("Location", fmt.Sprintf("/invoices/%d", inv.ID))
		httpx.JSON(w, http.StatusCreated, inv)
		return
	}
	middleware.Flash(w, r, "flash.created")
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

// List serves the invoice listing together with the dashboard analytics.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := services.ListQuery{
		Range:  r.URL.Query().Get("range"),
		Search: r.URL.Query().Get("search"),
	}
	listing, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, listing)
		return
	}
	h.render(w, r, http.StatusOK, "invoices.html", map[string]any{
		"Title":     i18n.T(middleware.LangFrom(r), "nav.invoices"),
		"Invoices":  listing.Invoices,
		"Analytics": listing.Analytics,
		"Range":     listing.Range,
		"Ranges":    rangeOptions,
		"Search":    listing.Search,
		"Flash":     middleware.TakeFlash(w, r),
	})
}

func (h *InvoiceHandler) View(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.load(w, r)
	if !ok {
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	h.render(w, r, http.StatusOK, "invoice.html", map[string]any{
		"Title":    inv.Number(),
		"Invoice":  inv,
		"Statuses": models.Statuses,
		"Flash":    middleware.TakeFlash(w, r),
	})
}

func (h *InvoiceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "edit.html", map[string]any{
		"Title":   i18n.T(middleware.LangFrom(r), "invoice.edit"),
		"Invoice": inv,
		"Form":    inputOf(inv),
	})
}

// Update replaces client, amount and items of an invoice.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, err := decodeInput(w, r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	inv, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err, "edit.html", map[string]any{
			"Invoice": &models.Invoice{ID: id},
			"Form":    in,
		})
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	middleware.Flash(w, r, "flash.updated")
	http.Redirect(w, r, fmt.Sprintf("/invoices/%d", id), http.StatusSeeOther)
}

func (h *InvoiceHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if httpx.IsJSONBody(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			h.badRequest(w, r, err)
			return
		}
	} else {
		body.Status = r.FormValue("status")
	}
	inv, err := h.svc.SetStatus(r.Context(), id, body.Status)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	middleware.Flash(w, r, "flash.status")
	http.Redirect(w, r, fmt.Sprintf("/invoices/%d", id), http.StatusSeeOther)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	if httpx.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	middleware.Flash(w, r, "flash.deleted")
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.load(w, r)
	if !ok {
		return
	}
	out, err := pdf.InvoicePDF(pdf.FromInvoice(inv))
	if err != nil {
		h.fail(w, r, err, "", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoice-%s.pdf\"", inv.Number()))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	if _, err := w.Write(out); err != nil {
		h.logger(r).Warn("pdf write failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
	}
}

func (h *InvoiceHandler) load(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "", nil)
		return nil, false
	}
	return inv, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil || id == 0 {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusNotFound, services.ErrNotFound.Code, services.ErrNotFound.Message, nil)
		} else {
			http.NotFound(w, r)
		}
		return 0, false
	}
	return uint(id), true
}

// decodeInput reads an invoice submission from a JSON body or a form.
// Form items come from the parallel description[] and amount[] fields; amount alone is the direct amount.
func decodeInput(w http.ResponseWriter, r *http.Request) (services.InvoiceInput, error) {
	var in services.InvoiceInput
	if httpx.IsJSONBody(r) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&in); err != nil {
			return in, fmt.Errorf("decode invoice: %w", err)
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, fmt.Errorf("parse form: %w", err)
	}
	in.Client = r.PostForm.Get("client")
	in.Amount = services.RawAmount(r.PostForm.Get("amount"))
	descs := r.PostForm["description[]"]
	amounts := r.PostForm["amount[]"]
	n := max(len(descs), len(amounts))
	for i := 0; i < n; i++ {
		var it services.ItemInput
		if i < len(descs) {
			it.Description = descs[i]
		}
		if i < len(amounts) {
			it.Amount = services.RawAmount(amounts[i])
		}
		in.Items = append(in.Items, it)
	}
	return in, nil
}

// inputOf pre-fills the edit form from a stored invoice.
func inputOf(inv *models.Invoice) services.InvoiceInput {
	in := services.InvoiceInput{Client: inv.Client}
	if len(inv.Items) == 0 {
		in.Amount = services.RawAmount(inv.Amount.StringFixed(2))
		return in
	}
	for _, it := range inv.Items {
		in.Items = append(in.Items, services.ItemInput{
			Description: it.Description,
			Amount:      services.RawAmount(it.Amount.StringFixed(2)),
		})
	}
	return in
}

func (h *InvoiceHandler) logger(r *http.Request) *zap.Logger {
	return logger.FromContextOr(r.Context(), h.log)
}

func (h *InvoiceHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, page, data); err != nil {
		h.logger(r).Error("render failed", zap.String("template", page), zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func (h *InvoiceHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// fail maps a service error to a response. Invalid form submissions re-render page with the violations.
func (h *InvoiceHandler) fail(w http.ResponseWriter, r *http.Request, err error, page string, data map[string]any) {
	status := statusFor(err)
	var svcErr *services.Error
	isDomain := errors.As(err, &svcErr)
	if status == http.StatusInternalServerError {
		h.logger(r).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	if httpx.WantsJSON(r) {
		if !isDomain {
			httpx.JSONError(w, status, "INTERNAL", "internal error", nil)
			return
		}
		var details any
		if len(svcErr.Details) > 0 {
			details = svcErr.Details
		}
		httpx.JSONError(w, status, svcErr.Code, svcErr.Message, details)
		return
	}

	if page != "" && errors.Is(err, services.ErrInvalidInput) {
		if data == nil {
			data = map[string]any{}
		}
		data["Errors"] = services.ViolationsOf(err)
		h.render(w, r, status, page, data)
		return
	}
	lang := middleware.LangFrom(r)
	switch status {
	case http.StatusNotFound:
		http.Error(w, i18n.T(lang, "error.not_found"), status)
	case http.StatusInternalServerError:
		http.Error(w, i18n.T(lang, "error.internal"), status)
	default:
		http.Error(w, err.Error(), status)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
