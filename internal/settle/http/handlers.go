// Package settlehttp exposes the settlement engine over a JSON API.
package settlehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/platform/httpx"
	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

const requestTimeout = 10 * time.Second

// SettlementService is the engine contract the handler depends on.
type SettlementService interface {
	Compute(ctx context.Context, in settle.Input) (settle.Result, error)
	Latest(ctx context.Context, period string) (settle.Result, error)
	Approve(ctx context.Context, period string) (settle.Result, error)
}

// Handler serves the settlement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  SettlementService
	validate *validator.Validate
}

// NewHandler constructs the settlement HTTP handler.
func NewHandler(logger *slog.Logger, service SettlementService) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type courseDTO struct {
	ID        string                     `json:"id" validate:"required"`
	Name      string                     `json:"name"`
	Revenue   decimal.Decimal            `json:"revenue"`
	Ownership map[string]decimal.Decimal `json:"ownership"`
	Excluded  bool                       `json:"excluded"`
}

type costLineDTO struct {
	ID       string          `json:"id" validate:"required"`
	Label    string          `json:"label" validate:"required"`
	Channel  string          `json:"channel"`
	Target   string          `json:"target"`
	CourseID string          `json:"course_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Month    string          `json:"month" validate:"required,len=7"`
}

type computeRequest struct {
	Courses   []courseDTO   `json:"courses" validate:"required,min=1,dive"`
	CostLines []costLineDTO `json:"cost_lines" validate:"dive"`
}

func (req computeRequest) toInput(period string) settle.Input {
	in := settle.Input{Period: period}
	for _, c := range req.Courses {
		in.Courses = append(in.Courses, settle.Course{
			ID:        c.ID,
			Name:      c.Name,
			Revenue:   c.Revenue,
			Ownership: c.Ownership,
			Excluded:  c.Excluded,
		})
	}
	for _, l := range req.CostLines {
		in.CostLines = append(in.CostLines, settle.CostLine{
			ID:       l.ID,
			Label:    l.Label,
			Channel:  l.Channel,
			Target:   l.Target,
			CourseID: l.CourseID,
			Amount:   l.Amount,
			Currency: l.Currency,
			Month:    l.Month,
		})
	}
	return in
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	if !shared.ValidPeriod(period) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", fmt.Sprintf("%q is not a period code", period))
		return
	}

	var req computeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Compute(ctx, req.toInput(period))
	if err != nil {
		h.respondComputeError(w, period, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	if !shared.ValidPeriod(period) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", fmt.Sprintf("%q is not a period code", period))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Latest(ctx, period)
	if err != nil {
		h.respondLookupError(w, period, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleIssues(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	if !shared.ValidPeriod(period) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", fmt.Sprintf("%q is not a period code", period))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Latest(ctx, period)
	if err != nil {
		h.respondLookupError(w, period, err)
		return
	}
	issues := result.Issues
	if issues == nil {
		issues = []settle.ValidationIssue{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"run_id": result.RunID,
		"period": result.Period,
		"issues": issues,
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	if !shared.ValidPeriod(period) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", fmt.Sprintf("%q is not a period code", period))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Approve(ctx, period)
	if err != nil {
		h.respondLookupError(w, period, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondComputeError(w http.ResponseWriter, period string, err error) {
	var inputErr *settle.InputError
	if errors.As(err, &inputErr) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", inputErr.Error())
		return
	}
	var cfgErr *settle.ConfigError
	if errors.As(err, &cfgErr) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Reference Data Error", cfgErr.Error())
		return
	}
	h.log().Error("settlement compute", slog.String("period", period), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *Handler) respondLookupError(w http.ResponseWriter, period string, err error) {
	if errors.Is(err, settle.ErrRunNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("no settlement run for %s", period))
		return
	}
	h.log().Error("settlement lookup", slog.String("period", period), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Sprintf("field %s failed on %s", first.Namespace(), first.Tag())
	}
	return err.Error()
}

func (h *Handler) log() *slog.Logger {
	if h != nil && h.logger != nil {
		return h.logger.With(slog.String("component", "settle.http"))
	}
	return slog.Default().With(slog.String("component", "settle.http"))
}
