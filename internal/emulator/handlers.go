package emulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// requireAuth wraps a handler with bearer token authentication.
func (s *Server) requireAuth(next func(w http.ResponseWriter, r *http.Request, user *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := authenticate(s.db, r)
		if err != nil {
			s.logger.Debug("unauthorized request",
				"path", r.URL.Path,
				"error", err,
			)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"nombre"`
}

// handleRegister creates an account and returns a fresh token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if req.Name == "" {
		req.Name = req.Email
	}

	user := User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashPassword(req.Password),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := issueToken(s.db, &user); err != nil {
		s.logger.Error("failed to issue token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"token": user.Token,
		"user":  user.payload(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin checks credentials and rotates the user's token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var user User
	err := s.db.Where("email = ?", strings.TrimSpace(strings.ToLower(req.Email))).First(&user).Error
	if err != nil || !passwordMatches(user.PasswordHash, req.Password) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := issueToken(s.db, &user); err != nil {
		s.logger.Error("failed to issue token", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token": user.Token,
		"user":  user.payload(),
	})
}

// handleMe returns the authenticated user's profile.
func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user *User) {
	s.writeJSON(w, http.StatusOK, map[string]any{"user": user.payload()})
}

// handleDump returns every plot (deleted included) plus the full
// reading history in one payload.
func (s *Server) handleDump(w http.ResponseWriter, _ *http.Request, _ *User) {
	var plots []Plot
	if err := s.db.Order("id").Find(&plots).Error; err != nil {
		s.logger.Error("failed to load plots", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var readings []SensorReading
	if err := s.db.Order("recorded_at").Find(&readings).Error; err != nil {
		s.logger.Error("failed to load readings", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	plotPayloads := make([]plotPayload, 0, len(plots))
	for _, p := range plots {
		plotPayloads = append(plotPayloads, p.payload())
	}
	readingPayloads := make([]readingPayload, 0, len(readings))
	for _, r := range readings {
		readingPayloads = append(readingPayloads, r.payload())
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"parcelas":  plotPayloads,
		"historico": readingPayloads,
	})
}

// handleLatest returns the most recent reading across all plots. The
// numeric channels go out as quoted decimals, matching the upstream
// revision the panel's coercion layer was built against.
func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request, _ *User) {
	var reading SensorReading
	err := s.db.Order("recorded_at DESC").First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": nil})
			return
		}
		s.logger.Error("failed to load latest reading", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"temperatura": strconv.FormatFloat(reading.Temperature, 'f', 1, 64),
			"humedad":     strconv.FormatFloat(reading.Humidity, 'f', 1, 64),
			"lluvia":      strconv.FormatFloat(reading.Rain, 'f', 1, 64),
			"sol":         strconv.FormatFloat(reading.Sunlight, 'f', 1, 64),
			"fecha":       reading.RecordedAt.UTC().Format(wireTimestamp),
		},
	})
}

type plotUpdateRequest struct {
	Name           *string  `json:"nombre"`
	Location       *string  `json:"ubicacion"`
	CropType       *string  `json:"tipo_cultivo"`
	Responsible    *string  `json:"responsable"`
	Latitude       *float64 `json:"latitud"`
	Longitude      *float64 `json:"longitud"`
	LastIrrigation *string  `json:"ultimo_riego"`
	Deleted        *bool    `json:"is_deleted"`
}

// handleUpdatePlot applies a partial update. Absent fields stay as they
// are; this is how the panel soft-deletes and restores plots.
func (s *Server) handleUpdatePlot(w http.ResponseWriter, r *http.Request, _ *User) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid plot id")
		return
	}

	var plot Plot
	if err := s.db.First(&plot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeError(w, http.StatusNotFound, "plot not found")
			return
		}
		s.logger.Error("failed to load plot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req plotUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		plot.Name = *req.Name
	}
	if req.Location != nil {
		plot.Location = *req.Location
	}
	if req.CropType != nil {
		plot.CropType = *req.CropType
	}
	if req.Responsible != nil {
		plot.Responsible = *req.Responsible
	}
	if req.Latitude != nil {
		plot.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		plot.Longitude = req.Longitude
	}
	if req.LastIrrigation != nil {
		if t, err := time.Parse(wireTimestamp, *req.LastIrrigation); err == nil {
			plot.LastIrrigation = t
		}
	}
	if req.Deleted != nil {
		plot.Deleted = *req.Deleted
	}

	if err := s.db.Save(&plot).Error; err != nil {
		s.logger.Error("failed to update plot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("plot updated", "plot_id", plot.ID)
	s.writeJSON(w, http.StatusOK, plot.payload())
}

type createReadingRequest struct {
	PlotID      uint     `json:"parcela_id"`
	RecordedAt  string   `json:"fecha_registro"`
	Temperature *float64 `json:"temperatura"`
	Humidity    *float64 `json:"humedad"`
	Rain        *float64 `json:"lluvia"`
	Sunlight    *float64 `json:"sol"`
}

// handleCreateReading stores a new sensor reading.
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request, _ *User) {
	var req createReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlotID == 0 {
		s.writeError(w, http.StatusBadRequest, "parcela_id is required")
		return
	}

	var plot Plot
	if err := s.db.First(&plot, req.PlotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeError(w, http.StatusBadRequest, "unknown plot")
			return
		}
		s.logger.Error("failed to load plot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	recorded := time.Now().UTC()
	if req.RecordedAt != "" {
		if t, err := time.Parse(wireTimestamp, req.RecordedAt); err == nil {
			recorded = t
		}
	}

	orZero := func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	}

	reading := SensorReading{
		PlotID:      req.PlotID,
		RecordedAt:  recorded,
		Temperature: orZero(req.Temperature),
		Humidity:    orZero(req.Humidity),
		Rain:        orZero(req.Rain),
		Sunlight:    orZero(req.Sunlight),
	}
	if err := s.db.Create(&reading).Error; err != nil {
		s.logger.Error("failed to create reading", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("reading created", "reading_id", reading.ID, "plot_id", reading.PlotID)
	s.writeJSON(w, http.StatusCreated, reading.payload())
}

// handleZones returns every irrigation zone. The response carries
// explicit no-store headers: zone status is safety-relevant and must
// never be served from a cache.
func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request, _ *User) {
	var zones []IrrigationZone
	if err := s.db.Order("id").Find(&zones).Error; err != nil {
		s.logger.Error("failed to load zones", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payloads := make([]zonePayload, 0, len(zones))
	for _, z := range zones {
		payloads = append(payloads, z.payload())
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	s.writeJSON(w, http.StatusOK, map[string]any{"zonas": payloads})
}

// handleLegacy redirects the pre-/api bare paths to their current
// location, preserving method and body.
func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	target := "/api" + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	s.logger.Debug("redirecting legacy path", "from", r.URL.Path, "to", target)
	http.Redirect(w, r, target, http.StatusPermanentRedirect)
}

// handleHealth serves the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
