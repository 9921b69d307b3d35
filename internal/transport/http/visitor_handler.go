package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	apierrors "vmscli/internal/errors"
	"vmscli/internal/exporter"
	"vmscli/internal/store"
)

// VisitorHandler serves visitor registration, checkout, history, stats,
// export and blacklist management.
type VisitorHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewVisitorHandler creates a visitor handler.
func NewVisitorHandler(st *store.Store, logger *slog.Logger) *VisitorHandler {
	return &VisitorHandler{
		store:  st,
		logger: logger.With(slog.String("handler", "visitor")),
	}
}

// Routes returns the chi router for /api/visitors.
func (h *VisitorHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Register)
	r.Post("/{id}/checkout", h.Checkout)
	r.Get("/active", h.Active)
	r.Get("/history/today", h.TodaysHistory)
	r.Get("/records", h.Records)
	r.Get("/stats", h.Stats)
	r.Get("/stats/daily", h.DailyStats)
	r.Get("/autofill", h.Autofill)
	r.Get("/export", h.Export)

	return r
}

// BlacklistRoutes returns the chi router for /api/blacklist.
func (h *VisitorHandler) BlacklistRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListBlacklist)
	r.Post("/", h.AddBlacklist)
	r.Delete("/{hp}", h.RemoveBlacklist)

	return r
}

// RegisterVisitorRequest is the check-in payload from the desk form.
type RegisterVisitorRequest struct {
	NRIC          string `json:"nric" validate:"omitempty,len=9"`
	HPNo          string `json:"hp_no" validate:"omitempty,len=8,numeric"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Name          string `json:"name"`
	Category      string `json:"category" validate:"required"`
	Purpose       string `json:"purpose" validate:"required"`
	Destination   string `json:"destination" validate:"required"`
	Company       string `json:"company"`
	VehicleNumber string `json:"vehicle_number"`
	IDNumber      string `json:"id_number"`
	Remarks       string `json:"remarks"`
	PersonVisited string `json:"person_visited" validate:"required"`
	Organization  string `json:"organization"`
}

// BlacklistRequest bars a phone number.
type BlacklistRequest struct {
	HPNo   string `json:"hp_no" validate:"required,len=8,numeric"`
	Reason string `json:"reason"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	TodaysCount            int64   `json:"todays_count"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

// Register handles POST /api/visitors.
func (h *VisitorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterVisitorRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if req.HPNo != "" {
		blocked, err := h.store.IsBlacklisted(req.HPNo)
		if err != nil {
			h.serverError(w, r, "blacklist lookup", err)
			return
		}
		if blocked {
			render.Render(w, r, apierrors.New(http.StatusForbidden,
				"VISITOR_BLACKLISTED", "Visitor is blacklisted"))
			return
		}
	}

	active, err := h.store.HasActiveVisit(req.NRIC, req.HPNo)
	if err != nil {
		h.serverError(w, r, "active visit lookup", err)
		return
	}
	if active {
		render.Render(w, r, apierrors.New(http.StatusConflict,
			"VISITOR_ALREADY_CHECKED_IN", "Visitor already has an active visit"))
		return
	}

	visitor := &store.Visitor{
		VisitRecord: store.VisitRecord{
			NRIC:          req.NRIC,
			HPNo:          req.HPNo,
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Name:          req.Name,
			Category:      req.Category,
			Purpose:       req.Purpose,
			Destination:   req.Destination,
			Company:       req.Company,
			VehicleNumber: req.VehicleNumber,
			PassNumber:    h.store.GeneratePassNumber(),
			IDNumber:      req.IDNumber,
			Remarks:       req.Remarks,
			PersonVisited: req.PersonVisited,
			Organization:  req.Organization,
		},
	}
	if err := h.store.AddVisitor(visitor); err != nil {
		if errors.Is(err, store.ErrInvalidVisitor) {
			render.Render(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		h.serverError(w, r, "register visitor", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, visitor)
}

// Checkout handles POST /api/visitors/{id}/checkout.
func (h *VisitorHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.store.CheckoutVisitor(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.Render(w, r, apierrors.NotFoundError("Visitor"))
			return
		}
		h.serverError(w, r, "checkout visitor", err)
		return
	}

	render.JSON(w, r, map[string]any{"success": true, "id": id})
}

// Active handles GET /api/visitors/active.
func (h *VisitorHandler) Active(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.store.ActiveVisitors()
	if err != nil {
		h.serverError(w, r, "active visitors", err)
		return
	}
	render.JSON(w, r, visitors)
}

// TodaysHistory handles GET /api/visitors/history/today.
func (h *VisitorHandler) TodaysHistory(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.store.TodaysHistory()
	if err != nil {
		h.serverError(w, r, "todays history", err)
		return
	}
	render.JSON(w, r, visitors)
}

// Records handles GET /api/visitors/records?start=&end=.
func (h *VisitorHandler) Records(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	visitors, err := h.store.AllRecords(start, end)
	if err != nil {
		h.serverError(w, r, "all records", err)
		return
	}
	render.JSON(w, r, visitors)
}

// Stats handles GET /api/visitors/stats.
func (h *VisitorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.TodaysCheckinCount()
	if err != nil {
		h.serverError(w, r, "todays count", err)
		return
	}
	avg, err := h.store.AverageDuration()
	if err != nil {
		h.serverError(w, r, "average duration", err)
		return
	}
	render.JSON(w, r, StatsResponse{
		TodaysCount:            count,
		AverageDurationMinutes: avg,
	})
}

// DailyStats handles GET /api/visitors/stats/daily.
func (h *VisitorHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	days, err := h.store.DailyCheckinsCurrentMonth()
	if err != nil {
		h.serverError(w, r, "daily stats", err)
		return
	}
	render.JSON(w, r, days)
}

// Autofill handles GET /api/visitors/autofill?nric=&hp_no=. Returns the
// latest completed visit so the form can be pre-filled for a returning
// visitor, or 404 when there is none.
func (h *VisitorHandler) Autofill(w http.ResponseWriter, r *http.Request) {
	nric := r.URL.Query().Get("nric")
	hpNo := r.URL.Query().Get("hp_no")
	if nric == "" && hpNo == "" {
		render.Render(w, r, apierrors.InvalidRequestWithError(
			errors.New("nric or hp_no is required")))
		return
	}

	visitor, err := h.store.MostRecentVisitForAutofill(nric, hpNo)
	if err != nil {
		h.serverError(w, r, "autofill lookup", err)
		return
	}
	if visitor == nil {
		render.Render(w, r, apierrors.NotFoundError("Previous visit"))
		return
	}
	render.JSON(w, r, visitor)
}

// Export handles GET /api/visitors/export?start=&end=. Streams the record
// range as an XLSX download.
func (h *VisitorHandler) Export(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	visitors, err := h.store.AllRecords(start, end)
	if err != nil {
		h.serverError(w, r, "export records", err)
		return
	}

	filename := fmt.Sprintf("visitor_records_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	if err := exporter.WriteVisitorReport(w, visitors); err != nil {
		h.logger.Error("export failed", slog.String("error", err.Error()))
	}
}

// ListBlacklist handles GET /api/blacklist.
func (h *VisitorHandler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Blacklist()
	if err != nil {
		h.serverError(w, r, "list blacklist", err)
		return
	}
	render.JSON(w, r, entries)
}

// AddBlacklist handles POST /api/blacklist.
func (h *VisitorHandler) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req BlacklistRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.store.AddToBlacklist(req.HPNo, req.Reason); err != nil {
		h.serverError(w, r, "add blacklist", err)
		return
	}

	h.logger.Info("hp number blacklisted", slog.String("hp_no", req.HPNo))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"success": true, "hp_no": req.HPNo})
}

// RemoveBlacklist handles DELETE /api/blacklist/{hp}.
func (h *VisitorHandler) RemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	hpNo := chi.URLParam(r, "hp")
	if err := h.store.RemoveFromBlacklist(hpNo); err != nil {
		h.serverError(w, r, "remove blacklist", err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "hp_no": hpNo})
}

func (h *VisitorHandler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", slog.String("error", err.Error()))
	render.Render(w, r, apierrors.ErrInternalServer)
}

// parseDateRange reads optional start/end query params in YYYY-MM-DD form.
// Both must be present or both absent.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		return time.Time{}, time.Time{}, nil
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("start and end must be given together")
	}

	start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad end date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end is before start")
	}
	return start, end, nil
}
