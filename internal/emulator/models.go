// Package emulator provides a development stand-in for the external
// monitoring API, backed by PostgreSQL. It reproduces the upstream's
// wire quirks (stringly-typed numerics, 0/1 deletion flags) so the
// panel exercises its coercion paths against realistic payloads.
package emulator

import (
	"strconv"
	"time"
)

// User is a registered operator account.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Token        string    `gorm:"index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for User.
func (User) TableName() string {
	return "users"
}

// Plot is an agricultural land unit. Soft deletion is a plain flag, not
// gorm.DeletedAt: deleted plots stay visible through the dump endpoint.
type Plot struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	Location       string
	CropType       string
	Responsible    string
	Latitude       *float64
	Longitude      *float64
	LastIrrigation time.Time
	Deleted        bool            `gorm:"index;not null;default:false"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	Readings       []SensorReading `gorm:"foreignKey:PlotID"`
}

// TableName specifies the table name for Plot.
func (Plot) TableName() string {
	return "plots"
}

// SensorReading is one historical measurement owned by a plot.
type SensorReading struct {
	ID          uint      `gorm:"primaryKey"`
	PlotID      uint      `gorm:"index:idx_plot_recorded;not null"`
	RecordedAt  time.Time `gorm:"index:idx_plot_recorded;index:idx_recorded;not null"`
	Temperature float64   `gorm:"not null"`
	Humidity    float64   `gorm:"not null"`
	Rain        float64   `gorm:"not null"`
	Sunlight    float64   `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for SensorReading.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// IrrigationZone is a controllable irrigation sector.
type IrrigationZone struct {
	ID             uint   `gorm:"primaryKey"`
	Sector         string `gorm:"not null"`
	Name           string `gorm:"not null"`
	IrrigationType string
	Status         string `gorm:"not null"`
	Latitude       *float64
	Longitude      *float64
	Reason         string
	ChangedAt      time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for IrrigationZone.
func (IrrigationZone) TableName() string {
	return "irrigation_zones"
}

// wireTimestamp is the format the upstream emits dates in.
const wireTimestamp = "2006-01-02 15:04:05"

// floatString renders a coordinate the way the upstream does: a quoted
// decimal, or null when absent.
func floatString(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', 6, 64)
	return &s
}

// userPayload is the wire form of a user.
type userPayload struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"nombre"`
}

func (u User) payload() userPayload {
	return userPayload{ID: u.ID, Email: u.Email, Name: u.Name}
}

// plotPayload is the wire form of a plot. Coordinates go out as quoted
// decimals and the deletion flag as 0/1, matching the upstream.
type plotPayload struct {
	ID             uint    `json:"id"`
	Name           string  `json:"nombre"`
	Location       string  `json:"ubicacion"`
	CropType       string  `json:"tipo_cultivo"`
	Responsible    string  `json:"responsable"`
	Latitude       *string `json:"latitud"`
	Longitude      *string `json:"longitud"`
	LastIrrigation string  `json:"ultimo_riego"`
	Deleted        int     `json:"is_deleted"`
}

func (p Plot) payload() plotPayload {
	deleted := 0
	if p.Deleted {
		deleted = 1
	}
	var irrigated string
	if !p.LastIrrigation.IsZero() {
		irrigated = p.LastIrrigation.UTC().Format(wireTimestamp)
	}
	return plotPayload{
		ID:             p.ID,
		Name:           p.Name,
		Location:       p.Location,
		CropType:       p.CropType,
		Responsible:    p.Responsible,
		Latitude:       floatString(p.Latitude),
		Longitude:      floatString(p.Longitude),
		LastIrrigation: irrigated,
		Deleted:        deleted,
	}
}

// readingPayload is the wire form of a sensor reading.
type readingPayload struct {
	ID          uint    `json:"id"`
	PlotID      uint    `json:"parcela_id"`
	RecordedAt  string  `json:"fecha_registro"`
	Temperature float64 `json:"temperatura"`
	Humidity    float64 `json:"humedad"`
	Rain        float64 `json:"lluvia"`
	Sunlight    float64 `json:"sol"`
}

func (r SensorReading) payload() readingPayload {
	return readingPayload{
		ID:          r.ID,
		PlotID:      r.PlotID,
		RecordedAt:  r.RecordedAt.UTC().Format(wireTimestamp),
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Rain:        r.Rain,
		Sunlight:    r.Sunlight,
	}
}

// zonePayload is the wire form of an irrigation zone.
type zonePayload struct {
	ID             uint    `json:"id"`
	Sector         string  `json:"sector"`
	Name           string  `json:"nombre"`
	IrrigationType string  `json:"tipo_riego"`
	Status         string  `json:"estado"`
	Latitude       *string `json:"latitud"`
	Longitude      *string `json:"longitud"`
	Reason         *string `json:"motivo"`
	ChangedAt      string  `json:"fecha"`
}

func (z IrrigationZone) payload() zonePayload {
	var reason *string
	if z.Reason != "" {
		reason = &z.Reason
	}
	var changed string
	if !z.ChangedAt.IsZero() {
		changed = z.ChangedAt.UTC().Format(wireTimestamp)
	}
	return zonePayload{
		ID:             z.ID,
		Sector:         z.Sector,
		Name:           z.Name,
		IrrigationType: z.IrrigationType,
		Status:         z.Status,
		Latitude:       floatString(z.Latitude),
		Longitude:      floatString(z.Longitude),
		Reason:         reason,
		ChangedAt:      changed,
	}
}
