package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// Store is the read side of the reading store.
type Store interface {
	LatestReading(ctx context.Context, city string) (domain.Reading, bool, error)
	DailySummaries(ctx context.Context, city, fromDate, toDate string) ([]domain.DailySummary, error)
	RecentAlertEvents(ctx context.Context, city string, limit int) ([]domain.AlertEvent, error)
}

// Query parameter bounds.
const (
	defaultDays  = 7
	maxDays      = 90
	defaultLimit = 10
	maxLimit     = 100
)

// Chart series colors.
const (
	colorAverage = "blue"
	colorMaximum = "red"
	colorMinimum = "green"
)

// APIOptions configure the read API.
type APIOptions struct {
	Cities       []string
	PollInterval time.Duration
	Location     *time.Location
	Unit         domain.TemperatureUnit
}

// API serves current conditions, summaries, and alert history.
type API struct {
	store      Store
	cities     []string
	known      map[string]bool
	staleAfter time.Duration
	loc        *time.Location
	unit       domain.TemperatureUnit
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewAPI creates the read API over store. A reading older than twice the
// poll interval is reported stale.
func NewAPI(store Store, opts APIOptions, clock clockwork.Clock, logger *slog.Logger) *API {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	known := make(map[string]bool, len(opts.Cities))
	for _, c := range opts.Cities {
		known[c] = true
	}
	return &API{
		store:      store,
		cities:     opts.Cities,
		known:      known,
		staleAfter: 2 * opts.PollInterval,
		loc:        opts.Location,
		unit:       opts.Unit,
		clock:      domain.ClockOrReal(clock),
		logger:     logger,
	}
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/cities", a.handleCities)
	r.Route("/cities/{city}", func(r chi.Router) {
		r.Use(a.requireKnownCity)
		r.Get("/current", a.handleCurrent)
		r.Get("/summaries", a.handleSummaries)
		r.Get("/alerts", a.handleAlerts)
	})
}

// CurrentResponse is the latest state of one city.
type CurrentResponse struct {
	City        string          `json:"city"`
	Reading     *domain.Reading `json:"reading"`
	LastUpdated *time.Time      `json:"last_updated"`
	Stale       bool            `json:"stale"`
}

// CitiesResponse lists every configured city.
type CitiesResponse struct {
	Cities []CurrentResponse `json:"cities"`
}

// SummariesResponse holds daily summaries in date order and a chart payload.
type SummariesResponse struct {
	City      string                `json:"city"`
	Days      int                   `json:"days"`
	Summaries []domain.DailySummary `json:"summaries"`
	Chart     Chart                 `json:"chart"`
}

// Chart is a temperature trend chart: one label per date and three series.
type Chart struct {
	Title  string   `json:"title"`
	Unit   string   `json:"unit"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Series is one line of the chart.
type Series struct {
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Values []float64 `json:"values"`
}

// AlertsResponse lists recent alert events, newest first.
type AlertsResponse struct {
	City   string              `json:"city"`
	Alerts []domain.AlertEvent `json:"alerts"`
}

func (a *API) requireKnownCity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if city := chi.URLParam(r, "city"); !a.known[city] {
			writeError(w, http.StatusNotFound, "unknown city "+strconv.Quote(city))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleCities(w http.ResponseWriter, r *http.Request) {
	resp := CitiesResponse{Cities: make([]CurrentResponse, 0, len(a.cities))}
	for _, city := range a.cities {
		cur, err := a.current(r.Context(), city)
		if err != nil {
			a.storeError(w, "latest reading", city, err)
			return
		}
		resp.Cities = append(resp.Cities, cur)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCurrent(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	cur, err := a.current(r.Context(), city)
	if err != nil {
		a.storeError(w, "latest reading", city, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (a *API) current(ctx context.Context, city string) (CurrentResponse, error) {
	reading, ok, err := a.store.LatestReading(ctx, city)
	if err != nil {
		return CurrentResponse{}, err
	}
	resp := CurrentResponse{City: city, Stale: true}
	if ok {
		ts := reading.Timestamp
		resp.Reading = &reading
		resp.LastUpdated = &ts
		resp.Stale = a.clock.Since(ts) > a.staleAfter
	}
	return resp, nil
}

func (a *API) handleSummaries(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	days, ok := intParam(r, "days", defaultDays, maxDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be an integer between 1 and 90")
		return
	}

	today := a.clock.Now().In(a.loc)
	from := domain.DateOf(today.AddDate(0, 0, -days), a.loc)
	to := domain.DateOf(today, a.loc)

	summaries, err := a.store.DailySummaries(r.Context(), city, from, to)
	if err != nil {
		a.storeError(w, "daily summaries", city, err)
		return
	}
	if summaries == nil {
		summaries = []domain.DailySummary{}
	}
	writeJSON(w, http.StatusOK, SummariesResponse{
		City:      city,
		Days:      days,
		Summaries: summaries,
		Chart:     a.chart(city, summaries),
	})
}

func (a *API) chart(city string, summaries []domain.DailySummary) Chart {
	labels := make([]string, len(summaries))
	avg := make([]float64, len(summaries))
	hi := make([]float64, len(summaries))
	lo := make([]float64, len(summaries))
	for i, s := range summaries {
		labels[i] = s.Date
		avg[i] = a.display(s.AvgTemp)
		hi[i] = a.display(s.MaxTemp)
		lo[i] = a.display(s.MinTemp)
	}
	return Chart{
		Title:  "Temperature Trends for " + city,
		Unit:   a.unit.Symbol(),
		Labels: labels,
		Series: []Series{
			{Name: "Average", Color: colorAverage, Values: avg},
			{Name: "Maximum", Color: colorMaximum, Values: hi},
			{Name: "Minimum", Color: colorMinimum, Values: lo},
		},
	}
}

func (a *API) display(c float64) float64 {
	if a.unit == domain.Fahrenheit {
		return domain.CelsiusToFahrenheit(c)
	}
	return c
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	limit, ok := intParam(r, "limit", defaultLimit, maxLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
		return
	}

	events, err := a.store.RecentAlertEvents(r.Context(), city, limit)
	if err != nil {
		a.storeError(w, "alert events", city, err)
		return
	}
	if events == nil {
		events = []domain.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, AlertsResponse{City: city, Alerts: events})
}

func (a *API) storeError(w http.ResponseWriter, what, city string, err error) {
	a.logger.Error("read api store failure", "query", what, "city", city, "error", err)
	writeError(w, http.StatusInternalServerError, "storage unavailable")
}

// intParam parses an optional integer query parameter in [1, max].
func intParam(r *http.Request, name string, def, maxVal int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxVal {
		return 0, false
	}
	return n, true
}
