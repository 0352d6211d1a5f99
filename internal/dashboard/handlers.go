package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agrovista.dev/panel/internal/aggregate"
	"agrovista.dev/panel/internal/dashboard/views"
	"agrovista.dev/panel/internal/geomap"
	"agrovista.dev/panel/internal/upstream"
)

const displayTime = "02 Jan 2006 15:04"

// handleLoginPage serves the sign-in page; an already signed-in
// operator goes straight to the panel.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.IsActive() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, "login", "Iniciar sesión", views.LoginPage(""))
}

// handleLoginSubmit processes the sign-in form.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	creds, err := s.client.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Info("login failed", "error", err)
		s.renderPage(w, r, "login", "Iniciar sesión", views.LoginPage(authErrorMessage(err)))
		return
	}

	s.state.SetUser(creds.User)
	if creds.User == (upstream.User{}) {
		if user, err := s.client.CurrentUser(r.Context()); err == nil {
			s.state.SetUser(user)
		}
	}

	// Warm the panel before the redirect lands.
	s.refresh(r.Context())

	s.logger.Info("operator signed in", "user_id", creds.User.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleRegisterPage serves the account creation page.
func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.IsActive() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, "register", "Crear cuenta", views.RegisterPage("", "", ""))
}

// handleRegisterSubmit processes the account creation form.
func (s *Server) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	name := r.PostFormValue("name")

	creds, err := s.client.Register(r.Context(), email, password, name)
	if err != nil {
		s.logger.Info("registration failed", "error", err)
		s.renderPage(w, r, "register", "Crear cuenta",
			views.RegisterPage(authErrorMessage(err), email, name))
		return
	}

	s.state.SetUser(creds.User)
	s.refresh(r.Context())

	s.logger.Info("operator registered", "user_id", creds.User.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout tears the session down and returns to the sign-in page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear()
	s.logger.Info("operator signed out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDashboard serves the main panel page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, fetchedAt, fetchErr := s.state.Snapshot()
	active := aggregate.ActivePlots(snap)

	markers, err := s.markersFor("plots", plotEntities(active))
	if err != nil {
		s.logger.Error("failed to build plot markers", "error", err)
		s.renderPage(w, r, "error", "Error", views.ErrorPage("No se pudo preparar el mapa."))
		return
	}

	vm := views.DashboardVM{
		Cards:       readingCards(s.state.Latest()),
		UpdatedAt:   formatFetchTime(fetchedAt),
		Plots:       plotRows(active),
		MarkersJSON: markers,
	}
	if fetchErr != nil {
		vm.StaleError = "No se pudo actualizar; mostrando los últimos datos disponibles."
	}

	s.renderPage(w, r, "dashboard", "Panel", views.DashboardPage(vm))
}

// handleLatestFragment serves the reading card block for htmx refresh.
func (s *Server) handleLatestFragment(w http.ResponseWriter, r *http.Request) {
	_, fetchedAt, _ := s.state.Snapshot()
	s.render(w, r, "latest_fragment",
		views.LatestCardsFragment(readingCards(s.state.Latest()), formatFetchTime(fetchedAt)))
}

// handleStats serves the historical statistics page.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, _, _ := s.state.Snapshot()

	window := parseWindow(r.URL.Query().Get("window"))
	series := aggregate.WindowedSeries(snap.History, window)
	averages := aggregate.AveragesOf(series)
	normalized := aggregate.Normalized(averages)

	labels, err := json.Marshal(series.Labels)
	if err != nil {
		s.logger.Error("failed to encode chart labels", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	datasets, err := json.Marshal([]chartDataset{
		{Label: "Temperatura (°C)", Data: series.Temperature, BorderColor: "#E53935"},
		{Label: "Humedad (%)", Data: series.Humidity, BorderColor: "#1E88E5"},
		{Label: "Lluvia (mm)", Data: series.Rain, BorderColor: "#00897B"},
		{Label: "Sol (lux)", Data: series.Sunlight, BorderColor: "#FDD835"},
	})
	if err != nil {
		s.logger.Error("failed to encode chart datasets", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	polar, err := json.Marshal(map[string]any{
		"labels": []string{"Temperatura", "Humedad", "Lluvia", "Sol"},
		"datasets": []map[string]any{{
			"data": []float64{
				normalized.Temperature,
				normalized.Humidity,
				normalized.Rain,
				normalized.Sunlight,
			},
			"backgroundColor": []string{"#E53935", "#1E88E5", "#00897B", "#FDD835"},
		}},
	})
	if err != nil {
		s.logger.Error("failed to encode polar chart", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm := views.StatsVM{
		Window:        window,
		WindowSizes:   aggregate.WindowSizes,
		LabelsJSON:    string(labels),
		SeriesJSON:    string(datasets),
		PolarJSON:     string(polar),
		HistoryLength: len(snap.History),
		Channels: []views.ChannelStat{
			{Label: "Temperatura", Average: formatValue(averages.Temperature), Normalized: formatValue(normalized.Temperature), Unit: "°C"},
			{Label: "Humedad", Average: formatValue(averages.Humidity), Normalized: formatValue(normalized.Humidity), Unit: "%"},
			{Label: "Lluvia", Average: formatValue(averages.Rain), Normalized: formatValue(normalized.Rain), Unit: "mm"},
			{Label: "Sol", Average: formatValue(averages.Sunlight), Normalized: formatValue(normalized.Sunlight), Unit: "lux"},
		},
	}

	s.renderPage(w, r, "stats", "Estadísticas", views.StatsPage(vm))
}

// handleDeletedPlots serves the deleted plot archive.
func (s *Server) handleDeletedPlots(w http.ResponseWriter, r *http.Request) {
	snap, _, _ := s.state.Snapshot()
	rows := plotRows(aggregate.DeletedPlots(snap))
	s.renderPage(w, r, "deleted_plots", "Parcelas eliminadas", views.DeletedPlotsPage(rows))
}

// optimalRanges is the static agronomic reference table.
var optimalRanges = []views.OptimalRange{
	{Channel: "Temperatura", Minimum: "18", Maximum: "32", Unit: "°C", Note: "Por encima de 35 °C el cultivo entra en estrés térmico."},
	{Channel: "Humedad", Minimum: "50", Maximum: "80", Unit: "%", Note: "Debajo de 40 % aumentar la frecuencia de riego."},
	{Channel: "Lluvia", Minimum: "2", Maximum: "25", Unit: "mm", Note: "Acumulados mayores exigen revisar el drenaje."},
	{Channel: "Sol", Minimum: "40", Maximum: "90", Unit: "lux", Note: "Valores sostenidos sobre 95 requieren malla sombra."},
}

// handleOptimalValues serves the reference values page.
func (s *Server) handleOptimalValues(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "optimal_values", "Valores óptimos", views.OptimalValuesPage(optimalRanges))
}

// handleZones serves the irrigation zones page.
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, fetchedAt, fetchErr := s.state.Zones()

	counts := aggregate.ZoneStatusCounts(zones)
	countLabels := make([]string, 0, len(counts))
	countValues := make([]int, 0, len(counts))
	countColors := make([]string, 0, len(counts))
	for _, c := range counts {
		countLabels = append(countLabels, string(c.Status))
		countValues = append(countValues, c.Count)
		countColors = append(countColors, c.Status.Color())
	}
	pie, err := json.Marshal(map[string]any{
		"labels": countLabels,
		"datasets": []map[string]any{{
			"data":            countValues,
			"backgroundColor": countColors,
		}},
	})
	if err != nil {
		s.logger.Error("failed to encode zone chart", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	markers, err := s.markersFor("zones", zoneEntities(zones))
	if err != nil {
		s.logger.Error("failed to build zone markers", "error", err)
		s.renderPage(w, r, "error", "Error", views.ErrorPage("No se pudo preparar el mapa."))
		return
	}

	vm := views.ZonesVM{
		CountsJSON:  string(pie),
		Rows:        zoneRows(zones),
		Troubled:    zoneRows(aggregate.TroubledZones(zones)),
		MarkersJSON: markers,
		UpdatedAt:   formatFetchTime(fetchedAt),
	}
	if fetchErr != nil {
		vm.StaleError = "No se pudo actualizar el estado de las zonas; mostrando la última lectura."
	}

	s.renderPage(w, r, "zones", "Zonas de riego", views.ZonesPage(vm))
}

// handleStylesheet serves the panel stylesheet.
func (s *Server) handleStylesheet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if _, err := w.Write([]byte(panelCSS)); err != nil {
		s.logger.Error("failed to write stylesheet", "error", err)
	}
}

// handleNotFound redirects unknown paths to the sign-in page.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("unknown path", "path", r.URL.Path)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleHealth serves the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}

type chartDataset struct {
	Label       string    `json:"label"`
	Data        []float64 `json:"data"`
	BorderColor string    `json:"borderColor"`
}

// authErrorMessage maps client errors to the message shown above the
// auth forms.
func authErrorMessage(err error) string {
	switch {
	case upstream.IsValidation(err):
		return err.Error()
	case upstream.IsAuth(err):
		return "Credenciales inválidas."
	default:
		return "No se pudo contactar el servidor. Intenta de nuevo."
	}
}

// parseWindow maps the query parameter to a known window size,
// defaulting to the smallest.
func parseWindow(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return aggregate.WindowSizes[0]
	}
	for _, size := range aggregate.WindowSizes {
		if n == size {
			return n
		}
	}
	return aggregate.WindowSizes[0]
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatFetchTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(displayTime)
}

// readingCards builds the four channel cards from a latest-reading
// result. A failed poll renders "Error" on every card rather than a
// stale or zero value.
func readingCards(latest aggregate.LatestResult) []views.ReadingCard {
	failed := latest.State == aggregate.ReadingFailed
	noData := latest.State == aggregate.ReadingNoData
	card := func(label string, value float64, unit string) views.ReadingCard {
		return views.ReadingCard{
			Label:  label,
			Value:  formatValue(value),
			Unit:   unit,
			Failed: failed,
			NoData: noData,
		}
	}
	return []views.ReadingCard{
		card("Temperatura", latest.Reading.Temperature, "°C"),
		card("Humedad", latest.Reading.Humidity, "%"),
		card("Lluvia", latest.Reading.Rain, "mm"),
		card("Sol", latest.Reading.Sunlight, "lux"),
	}
}

func plotRows(plots []upstream.Plot) []views.PlotRow {
	rows := make([]views.PlotRow, 0, len(plots))
	for _, p := range plots {
		coords := "—"
		if p.Latitude != nil && p.Longitude != nil {
			coords = fmt.Sprintf("%.4f, %.4f", *p.Latitude, *p.Longitude)
		}
		irrigated := "—"
		if !p.LastIrrigation.IsZero() {
			irrigated = p.LastIrrigation.Format(displayTime)
		}
		rows = append(rows, views.PlotRow{
			ID:             p.ID,
			Name:           p.Name,
			Location:       p.Location,
			CropType:       p.CropType,
			Responsible:    p.Responsible,
			LastIrrigation: irrigated,
			Coordinates:    coords,
		})
	}
	return rows
}

func zoneRows(zones []upstream.IrrigationZone) []views.ZoneRow {
	rows := make([]views.ZoneRow, 0, len(zones))
	for _, z := range zones {
		changed := "—"
		if !z.ChangedAt.IsZero() {
			changed = z.ChangedAt.Format(displayTime)
		}
		rows = append(rows, views.ZoneRow{
			Sector:    z.Sector,
			Name:      z.Name,
			Status:    string(z.Status),
			Color:     z.Color,
			Type:      z.IrrigationType,
			Reason:    z.Reason,
			ChangedAt: changed,
		})
	}
	return rows
}

// plotEntities adapts plots to map entities. The reconciler skips and
// warns on entries without coordinates.
func plotEntities(plots []upstream.Plot) []geomap.Entity {
	entities := make([]geomap.Entity, 0, len(plots))
	for _, p := range plots {
		entities = append(entities, geomap.Entity{
			ID:        p.ID,
			Label:     p.Name,
			Detail:    fmt.Sprintf("%s · %s", p.CropType, p.Responsible),
			Color:     "#4CAF50",
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		})
	}
	return entities
}

func zoneEntities(zones []upstream.IrrigationZone) []geomap.Entity {
	entities := make([]geomap.Entity, 0, len(zones))
	for _, z := range zones {
		entities = append(entities, geomap.Entity{
			ID:        z.ID,
			Label:     fmt.Sprintf("Sector %s · %s", z.Sector, z.Name),
			Detail:    string(z.Status),
			Color:     z.Color,
			Latitude:  z.Latitude,
			Longitude: z.Longitude,
		})
	}
	return entities
}
