package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
)

type SalaryHandler interface {
	// Components
	ListComponents(w http.ResponseWriter, r *http.Request)
	CreateComponent(w http.ResponseWriter, r *http.Request)
	UpdateComponent(w http.ResponseWriter, r *http.Request)
	DeactivateComponent(w http.ResponseWriter, r *http.Request)

	// Approval workflow
	Propose(w http.ResponseWriter, r *http.Request)
	Decide(w http.ResponseWriter, r *http.Request)

	// Ledger
	ListChanges(w http.ResponseWriter, r *http.Request)
	GetChange(w http.ResponseWriter, r *http.Request)
	ExportChanges(w http.ResponseWriter, r *http.Request)
}

type salaryHandlerImpl struct {
	componentService salary.ComponentService
	approvalService  salary.ApprovalService
	ledgerService    salary.LedgerService
}

func NewSalaryHandler(componentService salary.ComponentService, approvalService salary.ApprovalService, ledgerService salary.LedgerService) SalaryHandler {
	return &salaryHandlerImpl{
		componentService: componentService,
		approvalService:  approvalService,
		ledgerService:    ledgerService,
	}
}

// ========== COMPONENTS ==========

func (h *salaryHandlerImpl) ListComponents(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	components, err := h.componentService.ListComponents(r.Context(), chi.URLParam(r, "employeeId"), activeOnly)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	out := make([]salary.ComponentResponse, 0, len(components))
	for _, c := range components {
		out = append(out, salary.NewComponentResponse(c))
	}
	response.Success(w, out)
}

func (h *salaryHandlerImpl) CreateComponent(w http.ResponseWriter, r *http.Request) {
	var req salary.CreateComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.EmployeeID = chi.URLParam(r, "employeeId")
	req.Actor = middleware.Actor(r.Context())

	component, err := h.componentService.CreateComponent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salary component created", salary.NewComponentResponse(component))
}

func (h *salaryHandlerImpl) UpdateComponent(w http.ResponseWriter, r *http.Request) {
	var req salary.UpdateComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = chi.URLParam(r, "id")
	req.Actor = middleware.Actor(r.Context())

	component, err := h.componentService.UpdateComponent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary component updated", salary.NewComponentResponse(component))
}

func (h *salaryHandlerImpl) DeactivateComponent(w http.ResponseWriter, r *http.Request) {
	var req salary.DeactivateComponentRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = chi.URLParam(r, "id")
	req.Actor = middleware.Actor(r.Context())

	component, err := h.componentService.DeactivateComponent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary component deactivated", salary.NewComponentResponse(component))
}

// ========== APPROVAL ==========

func (h *salaryHandlerImpl) Propose(w http.ResponseWriter, r *http.Request) {
	var req salary.ProposeChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.Actor = middleware.Actor(r.Context())

	records, err := h.approvalService.Propose(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salary change proposed", salary.NewChangeRecordResponses(records))
}

func (h *salaryHandlerImpl) Decide(w http.ResponseWriter, r *http.Request) {
	var req salary.DecideChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.Actor = middleware.Actor(r.Context())

	records, err := h.approvalService.Decide(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	message := "Salary change approved"
	if salary.Decision(req.Decision) == salary.DecisionReject {
		message = "Salary change rejected"
	}
	response.SuccessWithMessage(w, message, salary.NewChangeRecordResponses(records))
}

// ========== LEDGER ==========

func changeQuery(r *http.Request) (salary.ListChangeRecordsRequest, map[string]string) {
	q := r.URL.Query()
	req := salary.ListChangeRecordsRequest{
		EmployeeID:  q.Get("employee_id"),
		ComponentID: q.Get("component_id"),
		Status:      q.Get("status"),
		Source:      q.Get("source"),
		SourceRefID: q.Get("source_ref_id"),
		From:        q.Get("from"),
		To:          q.Get("to"),
	}

	details := map[string]string{}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			details["page"] = "must be a number"
		}
		req.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			details["limit"] = "must be a number"
		}
		req.Limit = limit
	}
	return req, details
}

func (h *salaryHandlerImpl) ListChanges(w http.ResponseWriter, r *http.Request) {
	req, details := changeQuery(r)
	if len(details) > 0 {
		response.BadRequest(w, "Invalid query parameters", details)
		return
	}

	result, err := h.ledgerService.List(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, response.NewMeta(result.Page, result.Limit, result.TotalCount))
}

func (h *salaryHandlerImpl) GetChange(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledgerService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, salary.NewChangeRecordResponse(record))
}

// changeRecordRow is one line of the CSV compliance export.
type changeRecordRow struct {
	ID             string `csv:"id"`
	CreatedAt      string `csv:"created_at"`
	EmployeeID     string `csv:"employee_id"`
	ComponentID    string `csv:"component_id"`
	ComponentKind  string `csv:"component_kind"`
	ComponentName  string `csv:"component_name"`
	Action         string `csv:"action"`
	PreviousAmount string `csv:"previous_amount"`
	NewAmount      string `csv:"new_amount"`
	PreviousActive string `csv:"previous_active"`
	NewActive      bool   `csv:"new_active"`
	ApprovalStatus string `csv:"approval_status"`
	Source         string `csv:"source"`
	SourceRefID    string `csv:"source_ref_id"`
	Actor          string `csv:"actor"`
	Reason         string `csv:"reason"`
	EffectiveDate  string `csv:"effective_date"`
	DecidedBy      string `csv:"decided_by"`
	DecidedAt      string `csv:"decided_at"`
}

// ExportChanges returns every matching record as JSON, or as CSV with format=csv.
func (h *salaryHandlerImpl) ExportChanges(w http.ResponseWriter, r *http.Request) {
	req, details := changeQuery(r)
	if len(details) > 0 {
		response.BadRequest(w, "Invalid query parameters", details)
		return
	}

	records, err := h.ledgerService.Export(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		response.Success(w, salary.NewChangeRecordResponses(records))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=salary-changes-%s.csv", time.Now().Format("20060102")))
	rows := make([]changeRecordRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, exportRow(rec))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		slog.Error("Failed to write salary change export", "error", err)
	}
}

func exportRow(rec salary.ChangeRecord) changeRecordRow {
	opt := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	row := changeRecordRow{
		ID:             rec.ID,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		EmployeeID:     rec.EmployeeID,
		ComponentID:    opt(rec.ComponentID),
		ComponentKind:  string(rec.ComponentKind),
		ComponentName:  rec.ComponentName,
		Action:         string(rec.Action),
		NewAmount:      rec.NewAmount.StringFixed(2),
		NewActive:      rec.NewActive,
		ApprovalStatus: string(rec.ApprovalStatus),
		Source:         string(rec.Source),
		SourceRefID:    opt(rec.SourceRefID),
		Actor:          rec.Actor,
		Reason:         opt(rec.Reason),
		EffectiveDate:  rec.EffectiveDate.Format("2006-01-02"),
		DecidedBy:      opt(rec.DecidedBy),
	}
	if rec.PreviousAmount != nil {
		row.PreviousAmount = rec.PreviousAmount.StringFixed(2)
	}
	if rec.PreviousActive != nil {
		row.PreviousActive = strconv.FormatBool(*rec.PreviousActive)
	}
	if rec.DecidedAt != nil {
		row.DecidedAt = rec.DecidedAt.UTC().Format(time.RFC3339)
	}
	return row
}
