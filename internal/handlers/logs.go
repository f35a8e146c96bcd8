package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// LogHandler provides HTTP handlers for maintenance logs.
type LogHandler struct {
	logs     *services.LogService
	exports  *services.ExportService
	sessions *session.Manager
	pager    Pager
}

func NewLogHandler(logs *services.LogService, exports *services.ExportService, sessions *session.Manager, pager Pager) *LogHandler {
	return &LogHandler{logs: logs, exports: exports, sessions: sessions, pager: pager}
}

// LogRouter registers log routes on the given router. Every route needs a
// logged in session.
func LogRouter(r chi.Router, handler *LogHandler) {
	r.Use(requireAuth)

	r.Get("/", handler.ListLogs)
	r.Post("/", handler.CreateLog)
	r.Get("/search", handler.SearchLogs)
	r.Get("/servers", handler.ServerNames)
	r.Get("/stats", handler.Statistics)
	r.Get("/recent", handler.RecentLogs)
	r.Get("/export", handler.ListExports)
	r.Post("/export", handler.Export)
	r.Get("/export/{name}", handler.DownloadExport)
	r.Route("/{logID}", func(r chi.Router) {
		r.Get("/", handler.GetLog)
		r.Put("/", handler.UpdateLog)
		r.Delete("/", handler.DeleteLog)
	})
}

func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := h.pager.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseLogFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sess := currentSession(r)
	q := r.URL.Query()
	logs, err := h.logs.List(r.Context(), sess, services.ListQuery{
		Filter:   filter,
		Page:     types.NewPage(limit, offset),
		OrderBy:  q.Get("order_by"),
		OrderDir: types.OrderDir(strings.ToUpper(q.Get("order_dir"))),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := h.logs.Count(r.Context(), sess, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LogListResponse{
		Result:     services.ResultFor(nil, ""),
		Logs:       logs,
		Page:       page,
		PerPage:    limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
	})
}

func (h *LogHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "logID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.logs.Get(r.Context(), currentSession(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{Result: services.ResultFor(nil, ""), Log: entry})
}

func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLogRequest(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	id, err := h.logs.Create(r.Context(), currentSession(r), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{
		Result: services.ResultFor(nil, "Maintenance log created successfully"),
		ID:     id,
	})
}

func (h *LogHandler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "logID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := decodeLogRequest(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	err = h.logs.Update(r.Context(), currentSession(r), id, in)
	writeResult(w, err, "Maintenance log updated successfully")
}

func (h *LogHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "logID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.logs.Delete(r.Context(), currentSession(r), id)
	writeResult(w, err, "Maintenance log deleted successfully")
}

// SearchLogs runs the q parameter and remembers it in the session cookie.
func (h *LogHandler) SearchLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := h.pager.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := currentSession(r)
	result, err := h.logs.Search(r.Context(), &sess, r.URL.Query().Get("q"), types.NewPage(limit, offset))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if result.Term != "" {
		_, _ = h.sessions.Save(w, sess)
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Result:         services.ResultFor(nil, ""),
		Term:           result.Term,
		Logs:           result.Logs,
		Page:           page,
		PerPage:        limit,
		Total:          result.Total,
		TotalPages:     totalPages(result.Total, limit),
		RecentSearches: sess.RecentSearches,
	})
}

func (h *LogHandler) ServerNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.logs.ServerNames(r.Context(), currentSession(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ServerNamesResponse{Result: services.ResultFor(nil, ""), Servers: names})
}

func (h *LogHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.logs.Statistics(r.Context(), currentSession(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatisticsResponse{Result: services.ResultFor(nil, ""), Statistics: stats})
}

func (h *LogHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	n := services.DashboardRecentLogs
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		n = min(parsed, h.pager.MaxPage)
	}

	logs, err := h.logs.Recent(r.Context(), currentSession(r), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogListResponse{
		Result:  services.ResultFor(nil, ""),
		Logs:    logs,
		Page:    1,
		PerPage: n,
		Total:   len(logs),
	})
}

// Export stores a CSV of the logs matching the query filters.
func (h *LogHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.exports.Export(r.Context(), currentSession(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{
		Result: services.ResultFor(nil, "Export created"),
		Key:    result.Key,
		Rows:   result.Rows,
	})
}

func (h *LogHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	exports, err := h.exports.List(r.Context(), currentSession(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportListResponse{
		Result:  services.ResultFor(nil, ""),
		Exports: exports,
	})
}

func (h *LogHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := h.exports.Open(r.Context(), currentSession(r), "exports/"+name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func writeResult(w http.ResponseWriter, err error, okMessage string) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ResultFor(nil, okMessage))
}

// LogRequest is the create and update payload. Dates are YYYY-MM-DD and
// times HH:MM or HH:MM:SS.
type LogRequest struct {
	ServerName      string  `json:"server_name"`
	MaintenanceDate string  `json:"maintenance_date"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	Description     string  `json:"description"`
	MaintenanceType string  `json:"maintenance_type"`
	Status          string  `json:"status"`
	Outcome         *string `json:"outcome"`
}

func decodeLogRequest(w http.ResponseWriter, r *http.Request) (types.LogInput, error) {
	var req LogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return types.LogInput{}, &services.ValidationError{Message: "Invalid request body"}
	}

	in := types.LogInput{
		ServerName:      req.ServerName,
		Description:     req.Description,
		MaintenanceType: types.MaintenanceType(strings.ToLower(strings.TrimSpace(req.MaintenanceType))),
		Status:          types.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		Outcome:         req.Outcome,
	}
	if raw := strings.TrimSpace(req.MaintenanceDate); raw != "" {
		date, err := time.Parse(types.DateLayout, raw)
		if err != nil {
			return types.LogInput{}, &services.ValidationError{Field: "maintenance_date", Message: "Invalid maintenance date"}
		}
		in.MaintenanceDate = date
	}

	var err error
	if in.StartTime, err = parseOptionalTime(req.StartTime); err != nil {
		return types.LogInput{}, &services.ValidationError{Field: "start_time", Message: "Invalid start time"}
	}
	if in.EndTime, err = parseOptionalTime(req.EndTime); err != nil {
		return types.LogInput{}, &services.ValidationError{Field: "end_time", Message: "Invalid end time"}
	}
	return in, nil
}

func parseOptionalTime(raw *string) (*types.TimeOfDay, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := types.ParseTimeOfDay(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseLogFilter(r *http.Request) (types.LogFilter, error) {
	q := r.URL.Query()
	var filter types.LogFilter

	if v := strings.TrimSpace(q.Get("server_name")); v != "" {
		filter.ServerName = &v
	}
	if v := q.Get("status"); strings.TrimSpace(v) != "" {
		status, err := types.ParseStatus(v)
		if err != nil {
			return filter, &services.ValidationError{Field: "status", Message: "Invalid status"}
		}
		filter.Status = &status
	}
	if v := q.Get("maintenance_type"); strings.TrimSpace(v) != "" {
		mt, err := types.ParseMaintenanceType(v)
		if err != nil {
			return filter, &services.ValidationError{Field: "maintenance_type", Message: "Invalid maintenance type"}
		}
		filter.MaintenanceType = &mt
	}
	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{
		{"date_from", &filter.DateFrom},
		{"date_to", &filter.DateTo},
	} {
		raw := strings.TrimSpace(q.Get(bound.param))
		if raw == "" {
			continue
		}
		date, err := time.Parse(types.DateLayout, raw)
		if err != nil {
			return filter, &services.ValidationError{Field: bound.param, Message: "Invalid date"}
		}
		*bound.dst = &date
	}
	if v := strings.TrimSpace(q.Get("performed_by")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 1 {
			return filter, &services.ValidationError{Field: "performed_by", Message: "Invalid user id"}
		}
		filter.PerformedBy = &id
	}
	return filter, nil
}

type LogResponse struct {
	services.Result
	Log types.MaintenanceLog `json:"log"`
}

// LogListResponse is the paginated list response payload.
type LogListResponse struct {
	services.Result
	Logs       []types.MaintenanceLog `json:"logs"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	Total      int                    `json:"total"`
	TotalPages int                    `json:"total_pages"`
}

type SearchResponse struct {
	services.Result
	Term           string                 `json:"term"`
	Logs           []types.MaintenanceLog `json:"logs"`
	Page           int                    `json:"page"`
	PerPage        int                    `json:"per_page"`
	Total          int                    `json:"total"`
	TotalPages     int                    `json:"total_pages"`
	RecentSearches []string               `json:"recent_searches"`
}

type ServerNamesResponse struct {
	services.Result
	Servers []string `json:"servers"`
}

type StatisticsResponse struct {
	services.Result
	Statistics types.Statistics `json:"statistics"`
}

type ExportListResponse struct {
	services.Result
	Exports []services.ExportInfo `json:"exports"`
}

type ExportResponse struct {
	services.Result
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}
