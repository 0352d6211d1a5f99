// Package upstream implements the client for the external monitoring API.
//
// It decorates every request with the stored bearer credential, tears the
// session down on unauthorized responses, and funnels every inbound payload
// through a single typed-decoding boundary so the rest of the panel never
// sees raw wire data.
package upstream

import "time"

// Plot is a managed agricultural land unit ("parcela").
type Plot struct {
	ID             int64
	Name           string
	Location       string
	CropType       string
	Responsible    string
	Latitude       *float64
	Longitude      *float64
	LastIrrigation time.Time
	Deleted        bool
}

// Reading is one historical sensor reading owned by a plot.
type Reading struct {
	ID          int64
	PlotID      int64
	RecordedAt  time.Time
	Temperature float64
	Humidity    float64
	Rain        float64
	Sunlight    float64
}

// Snapshot is one atomic bulk read of plots plus historical readings.
// It is replaced wholesale on every successful poll, never merged.
type Snapshot struct {
	Plots   []Plot
	History []Reading
}

// User is the authenticated operator profile.
type User struct {
	ID    int64
	Email string
	Name  string
}

// Credentials is the result of a successful login or registration.
type Credentials struct {
	Token string
	User  User
}

// ZoneStatus is the operational status of an irrigation zone. The wire
// values are the upstream's Spanish identifiers.
type ZoneStatus string

const (
	ZoneOn           ZoneStatus = "encendido"
	ZoneOff          ZoneStatus = "apagado"
	ZoneMaintenance  ZoneStatus = "mantenimiento"
	ZoneBroken       ZoneStatus = "descompuesto"
	ZoneOutOfService ZoneStatus = "fuera_de_servicio"
)

// zoneStatusColors maps each known status to its display color.
var zoneStatusColors = map[ZoneStatus]string{
	ZoneOn:           "#4CAF50",
	ZoneOff:          "#607D8B",
	ZoneMaintenance:  "#FFC107",
	ZoneBroken:       "#F44336",
	ZoneOutOfService: "#9C27B0",
}

// fallbackZoneColor is used for statuses outside the known set, which are
// passed through rather than rejected.
const fallbackZoneColor = "#9E9E9E"

// Known reports whether the status belongs to the closed set.
func (s ZoneStatus) Known() bool {
	_, ok := zoneStatusColors[s]
	return ok
}

// Color returns the display color for the status.
func (s ZoneStatus) Color() string {
	if c, ok := zoneStatusColors[s]; ok {
		return c
	}
	return fallbackZoneColor
}

// Troubled reports whether the status indicates a zone needing attention.
func (s ZoneStatus) Troubled() bool {
	switch s {
	case ZoneMaintenance, ZoneBroken, ZoneOutOfService:
		return true
	}
	return false
}

// IrrigationZone is a controllable irrigation sector.
type IrrigationZone struct {
	ID             int64
	Sector         string
	Name           string
	IrrigationType string
	Status         ZoneStatus
	Latitude       *float64
	Longitude      *float64
	Reason         string
	ChangedAt      time.Time
	Color          string
}

// PlotUpdate carries the fields of a partial plot update. Nil fields are
// left untouched by the upstream.
type PlotUpdate struct {
	Name           *string  `json:"nombre,omitempty"`
	Location       *string  `json:"ubicacion,omitempty"`
	CropType       *string  `json:"tipo_cultivo,omitempty"`
	Responsible    *string  `json:"responsable,omitempty"`
	Latitude       *float64 `json:"latitud,omitempty"`
	Longitude      *float64 `json:"longitud,omitempty"`
	LastIrrigation *string  `json:"ultimo_riego,omitempty"`
	Deleted        *bool    `json:"is_deleted,omitempty"`
}

// NewReading carries the fields of a sensor reading creation request.
type NewReading struct {
	PlotID      int64   `json:"parcela_id"`
	RecordedAt  string  `json:"fecha_registro"`
	Temperature float64 `json:"temperatura"`
	Humidity    float64 `json:"humedad"`
	Rain        float64 `json:"lluvia"`
	Sunlight    float64 `json:"sol"`
}
