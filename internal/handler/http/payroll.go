package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Periods
	CreatePeriod(w http.ResponseWriter, r *http.Request)
	ListPeriods(w http.ResponseWriter, r *http.Request)
	GetPeriod(w http.ResponseWriter, r *http.Request)
	ListLineItems(w http.ResponseWriter, r *http.Request)

	// Variable inputs
	SetVariableInputs(w http.ResponseWriter, r *http.Request)
	GetVariableInputs(w http.ResponseWriter, r *http.Request)
	ClearVariableInput(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	Calculate(w http.ResponseWriter, r *http.Request)
	Finalize(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService  payroll.PayrollService
	variableService payroll.VariableInputService
}

func NewPayrollHandler(payrollService payroll.PayrollService, variableService payroll.VariableInputService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, variableService: variableService}
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ========== PERIODS ==========

func (h *payrollHandlerImpl) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req payroll.CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	period, err := h.payrollService.CreatePeriod(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll period created", payroll.NewPeriodResponse(period))
}

func (h *payrollHandlerImpl) ListPeriods(w http.ResponseWriter, r *http.Request) {
	var year *int
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "Invalid year", map[string]string{"year": "must be a number"})
			return
		}
		year = &y
	}

	periods, err := h.payrollService.ListPeriods(r.Context(), year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewPeriodResponses(periods))
}

func (h *payrollHandlerImpl) GetPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.payrollService.GetPeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewPeriodResponse(period))
}

func (h *payrollHandlerImpl) ListLineItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.payrollService.ListLineItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewLineItemResponses(items))
}

// ========== VARIABLE INPUTS ==========

func (h *payrollHandlerImpl) SetVariableInputs(w http.ResponseWriter, r *http.Request) {
	var req payroll.SetVariableInputsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.PeriodID = chi.URLParam(r, "id")

	inputs, err := h.variableService.SetVariableInputs(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Variable inputs saved", payroll.NewVariableInputResponses(inputs))
}

func (h *payrollHandlerImpl) GetVariableInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.variableService.GetVariableInputs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewVariableInputResponses(inputs))
}

func (h *payrollHandlerImpl) ClearVariableInput(w http.ResponseWriter, r *http.Request) {
	err := h.variableService.ClearVariableInput(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "employeeId"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Variable input cleared", nil)
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculateRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.PeriodID = chi.URLParam(r, "id")

	result, err := h.payrollService.Calculate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.CalculationResponse{
		Period:    payroll.NewPeriodResponse(result.Period),
		LineItems: payroll.NewLineItemResponses(result.LineItems),
	})
}

func (h *payrollHandlerImpl) Finalize(w http.ResponseWriter, r *http.Request) {
	var req payroll.FinalizeRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.PeriodID = chi.URLParam(r, "id")
	req.Actor = middleware.Actor(r.Context())

	period, err := h.payrollService.Finalize(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period finalized", payroll.NewPeriodResponse(period))
}
