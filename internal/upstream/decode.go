package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	z "github.com/Oudwins/zog"
)

// All payload decoding lives here. The upstream emits numbers as numbers
// or as strings depending on endpoint revision, so numeric fields come in
// through flexFloat, and required shapes are checked with zog schemas
// before anything reaches the aggregator.

// flexFloat decodes a JSON number, a quoted number, or null. Unparseable
// and missing values are distinguishable from a real zero via ok.
type flexFloat struct {
	val float64
	ok  bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		// ParseFloat accepts "NaN" and "Inf"; neither is a usable
		// coordinate or channel value.
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		f.val, f.ok = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	f.val, f.ok = v, true
	return nil
}

// orZero returns the value, substituting 0 for unparseable or missing
// input so callers never see NaN.
func (f flexFloat) orZero() float64 {
	if !f.ok {
		return 0
	}
	return f.val
}

// pointer returns the value or nil for unparseable/missing input.
func (f flexFloat) pointer() *float64 {
	if !f.ok {
		return nil
	}
	v := f.val
	return &v
}

// flexBool decodes the upstream's deletion flag, which arrives as 0/1,
// true/false, or a quoted variant of either.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.TrimSpace(string(data)), `"`) {
	case "1", "true":
		*b = true
	}
	return nil
}

// timestampLayouts are the formats the upstream has been observed to emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type plotWire struct {
	ID             int64     `json:"id"`
	Name           string    `json:"nombre"`
	Location       string    `json:"ubicacion"`
	CropType       string    `json:"tipo_cultivo"`
	Responsible    string    `json:"responsable"`
	Latitude       flexFloat `json:"latitud"`
	Longitude      flexFloat `json:"longitud"`
	LastIrrigation string    `json:"ultimo_riego"`
	Deleted        flexBool  `json:"is_deleted"`
}

func (w plotWire) toPlot() Plot {
	return Plot{
		ID:             w.ID,
		Name:           w.Name,
		Location:       w.Location,
		CropType:       w.CropType,
		Responsible:    w.Responsible,
		Latitude:       w.Latitude.pointer(),
		Longitude:      w.Longitude.pointer(),
		LastIrrigation: parseTimestamp(w.LastIrrigation),
		Deleted:        bool(w.Deleted),
	}
}

type readingWire struct {
	ID          int64     `json:"id"`
	PlotID      int64     `json:"parcela_id"`
	RecordedAt  string    `json:"fecha_registro"`
	Temperature flexFloat `json:"temperatura"`
	Humidity    flexFloat `json:"humedad"`
	Rain        flexFloat `json:"lluvia"`
	Sunlight    flexFloat `json:"sol"`
}

func (w readingWire) toReading() Reading {
	return Reading{
		ID:          w.ID,
		PlotID:      w.PlotID,
		RecordedAt:  parseTimestamp(w.RecordedAt),
		Temperature: w.Temperature.orZero(),
		Humidity:    w.Humidity.orZero(),
		Rain:        w.Rain.orZero(),
		Sunlight:    w.Sunlight.orZero(),
	}
}

func decodeSnapshot(body []byte) (Snapshot, error) {
	var wire struct {
		Plots   []plotWire    `json:"parcelas"`
		History []readingWire `json:"historico"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Plots:   make([]Plot, 0, len(wire.Plots)),
		History: make([]Reading, 0, len(wire.History)),
	}
	for _, p := range wire.Plots {
		snap.Plots = append(snap.Plots, p.toPlot())
	}
	for _, r := range wire.History {
		snap.History = append(snap.History, r.toReading())
	}
	return snap, nil
}

// decodeLatestReading decodes the datos-generales payload. All four
// channels are coerced to valid numbers, substituting 0; a missing
// registration date is stamped with the current time.
func decodeLatestReading(body []byte) (Reading, error) {
	var wire struct {
		Status string `json:"status"`
		Data   *struct {
			Temperature flexFloat `json:"temperatura"`
			Humidity    flexFloat `json:"humedad"`
			Rain        flexFloat `json:"lluvia"`
			Sunlight    flexFloat `json:"sol"`
			Date        string    `json:"fecha"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Reading{}, err
	}
	if wire.Data == nil {
		return Reading{RecordedAt: time.Now()}, nil
	}

	recorded := parseTimestamp(wire.Data.Date)
	if recorded.IsZero() {
		recorded = time.Now()
	}
	return Reading{
		RecordedAt:  recorded,
		Temperature: wire.Data.Temperature.orZero(),
		Humidity:    wire.Data.Humidity.orZero(),
		Rain:        wire.Data.Rain.orZero(),
		Sunlight:    wire.Data.Sunlight.orZero(),
	}, nil
}

// credsRecord is validated by credsSchema; a response without a token is a
// shape failure, not a silent pass-through.
type credsRecord struct {
	Token string
}

var credsSchema = z.Struct(z.Shape{
	"Token": z.String().Required(),
})

func decodeCredentials(body []byte) (Credentials, error) {
	var wire struct {
		Token string    `json:"token"`
		User  *userWire `json:"user"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Credentials{}, err
	}

	var rec credsRecord
	if err := credsSchema.Parse(map[string]any{"Token": wire.Token}, &rec); err != nil {
		return Credentials{}, fmt.Errorf("missing token: %v", err)
	}

	creds := Credentials{Token: rec.Token}
	if wire.User != nil {
		creds.User = wire.User.toUser()
	}
	return creds, nil
}

type userWire struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"nombre"`
}

func (w userWire) toUser() User {
	return User{ID: w.ID, Email: w.Email, Name: w.Name}
}

func decodeUser(body []byte) (User, error) {
	var wire struct {
		User *userWire `json:"user"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return User{}, err
	}
	if wire.User == nil {
		return User{}, fmt.Errorf("missing user")
	}
	return wire.User.toUser(), nil
}

// zoneRecord is the shape-checked portion of an irrigation zone payload.
// Coordinates are handled separately because they are legitimately null.
type zoneRecord struct {
	ID             int64
	Sector         string
	Name           string
	IrrigationType string
	Status         string
	Reason         string
	Color          string
	Date           string
}

var zoneSchema = z.Struct(z.Shape{
	"ID":             z.Int64().Required(),
	"Sector":         z.String().Required(),
	"Name":           z.String().Required(),
	"IrrigationType": z.String().Optional(),
	"Status":         z.String().Required(),
	"Reason":         z.String().Optional(),
	"Color":          z.String().Optional(),
	"Date":           z.String().Optional(),
})

func decodeZones(body []byte) ([]IrrigationZone, error) {
	var wire struct {
		Zones []json.RawMessage `json:"zonas"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if wire.Zones == nil {
		return nil, fmt.Errorf("missing zonas array")
	}

	zones := make([]IrrigationZone, 0, len(wire.Zones))
	for i, raw := range wire.Zones {
		var fields struct {
			ID             int64     `json:"id"`
			Sector         string    `json:"sector"`
			Name           string    `json:"nombre"`
			IrrigationType string    `json:"tipo_riego"`
			Status         string    `json:"estado"`
			Latitude       flexFloat `json:"latitud"`
			Longitude      flexFloat `json:"longitud"`
			Reason         *string   `json:"motivo"`
			Date           string    `json:"fecha"`
			Color          string    `json:"color"`
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}

		var rec zoneRecord
		err := zoneSchema.Parse(map[string]any{
			"ID":             fields.ID,
			"Sector":         fields.Sector,
			"Name":           fields.Name,
			"IrrigationType": fields.IrrigationType,
			"Status":         fields.Status,
			"Reason":         deref(fields.Reason),
			"Color":          fields.Color,
			"Date":           fields.Date,
		}, &rec)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %v", i, err)
		}

		status := ZoneStatus(rec.Status)
		color := rec.Color
		if color == "" {
			color = status.Color()
		}
		zones = append(zones, IrrigationZone{
			ID:             rec.ID,
			Sector:         rec.Sector,
			Name:           rec.Name,
			IrrigationType: rec.IrrigationType,
			Status:         status,
			Latitude:       fields.Latitude.pointer(),
			Longitude:      fields.Longitude.pointer(),
			Reason:         rec.Reason,
			ChangedAt:      parseTimestamp(rec.Date),
			Color:          color,
		})
	}
	return zones, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodePlot(body []byte) (Plot, error) {
	var wire plotWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return Plot{}, err
	}
	return wire.toPlot(), nil
}

func decodeReading(body []byte) (Reading, error) {
	var wire readingWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return Reading{}, err
	}
	return wire.toReading(), nil
}
