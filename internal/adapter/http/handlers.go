package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/alerts"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/ingest"
	"github.com/couchcryptid/weather-station-api/internal/report"
)

const (
	headerAPIKey         = "x-api-key"
	headerAdminToken     = "x-admin-token"
	headerIdempotencyKey = "Idempotency-Key"

	defaultForecastDays = 7
	maxForecastDays     = 16
)

type createdBody struct {
	OK      bool           `json:"ok"`
	ID      string         `json:"id"`
	Reading domain.Reading `json:"reading"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Writer.AuthorizeDevice(r.Header.Get(headerAPIKey)); err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Writer.Ingest(r.Context(), r.Header.Get(headerAPIKey), r.Header.Get(headerIdempotencyKey), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCreated(w, res)
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Writer.AuthorizeAdmin(r.Header.Get(headerAdminToken)); err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Writer.Create(r.Context(), r.Header.Get(headerAdminToken), r.Header.Get(headerIdempotencyKey), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeCreated(w, res)
}

func (s *Server) handleUpdateReading(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Writer.AuthorizeAdmin(r.Header.Get(headerAdminToken)); err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.deps.Writer.Update(r.Context(), r.Header.Get(headerAdminToken), r.PathValue("id"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "modified": n})
}

func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Writer.Delete(r.Context(), r.Header.Get(headerAdminToken), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": n})
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseReadingFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	readings, err := s.deps.Reader.ListReadings(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(readings))
}

func (s *Server) handleExportDay(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.deps.Reader.DaySummary(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	readings, err := s.deps.Reader.DayReadings(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := report.DayWorkbook(summary, readings, s.deps.Location)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("leituras-%s.xlsx", date), data)
}

func (s *Server) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	// An absent or malformed date shows today.
	date, err := domain.ParseCivilDate(r.URL.Query().Get("date"))
	if err != nil {
		date = s.deps.Reader.Today()
	}
	summary, err := s.deps.Reader.DaySummary(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDayReport(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.deps.Reader.DaySummary(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.deps.Reader.ForecastComparison(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := report.DaySummaryPDF(s.deps.StationName, summary, rows)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/pdf", fmt.Sprintf("resumo-%s.pdf", date), data)
}

func (s *Server) handleHomeSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Reader.HomeSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		state = q.Get("uf")
	}
	records, err := s.deps.Alerts.Alerts(r.Context(), alerts.Query{State: state, City: q.Get("city")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(records))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hours, err := s.deps.Reader.Forecast(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if hours == nil {
		hours = []domain.ForecastHour{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": date.String(), "hours": hours})
}

func (s *Server) handleWeeklyForecast(w http.ResponseWriter, r *http.Request) {
	days := defaultForecastDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxForecastDays {
			s.writeError(w, r, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidPayload, maxForecastDays))
			return
		}
		days = n
	}
	out, err := s.deps.Reader.WeeklyForecast(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []domain.ForecastDay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

func (s *Server) handleForecastCompare(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.deps.Reader.ForecastComparison(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": date.String(), "rows": rows})
}

// parseDate reads ?date=YYYY-MM-DD, defaulting to today when absent.
func (s *Server) parseDate(r *http.Request) (domain.CivilDate, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.deps.Reader.Today(), nil
	}
	return domain.ParseCivilDate(raw)
}

// parseReadingFilter reads deviceId, from/to (or since/until), limit and
// order from the query string.
func parseReadingFilter(r *http.Request) (domain.ReadingFilter, error) {
	q := r.URL.Query()
	f := domain.ReadingFilter{DeviceID: strings.TrimSpace(q.Get("deviceId"))}

	from, err := optionalInstant(q.Get("from"), q.Get("since"))
	if err != nil {
		return f, err
	}
	to, err := optionalInstant(q.Get("to"), q.Get("until"))
	if err != nil {
		return f, err
	}
	f.From, f.To = from, to

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidPayload)
		}
		f.Limit = domain.ClampLimit(n)
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
		f.Order = domain.SortDesc
	case "asc":
		f.Order = domain.SortAsc
	default:
		return f, fmt.Errorf("%w: order must be asc or desc", domain.ErrInvalidPayload)
	}
	return f, nil
}

func optionalInstant(primary, alias string) (*time.Time, error) {
	raw := strings.TrimSpace(primary)
	if raw == "" {
		raw = strings.TrimSpace(alias)
	}
	if raw == "" {
		return nil, nil
	}
	t, err := domain.ParseInstant(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrInvalidPayload, err)
	}
	return body, nil
}

func writeCreated(w http.ResponseWriter, res ingest.Result) {
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, createdBody{OK: true, ID: res.Reading.ID, Reading: res.Reading})
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
