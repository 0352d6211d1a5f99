package emulator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/gorm"
)

// Seeding parameters. Coordinates cluster around the Cancún area the
// reference deployment monitors.
const (
	seedPlots           = 8
	seedReadingsPerPlot = 48
	seedZones           = 6
	seedReadingInterval = 30 * time.Minute

	seedCenterLat = 21.06
	seedCenterLng = -86.89
	seedSpread    = 0.08
)

var seedStatuses = []string{
	"encendido", "encendido", "apagado",
	"mantenimiento", "descompuesto", "fuera_de_servicio",
}

var seedCrops = []string{
	"Maíz", "Tomate", "Aguacate", "Caña de azúcar", "Frijol", "Chile habanero",
}

var seedIrrigationTypes = []string{"goteo", "aspersión", "gravedad"}

// Seed fills an empty database with plausible farm data. A database
// that already has plots is left untouched, so restarts keep state.
func Seed(db *gorm.DB, logger *slog.Logger) error {
	var plots int64
	if err := db.Model(&Plot{}).Count(&plots).Error; err != nil {
		return fmt.Errorf("counting plots: %w", err)
	}
	if plots > 0 {
		logger.Info("database already seeded", "plots", plots)
		return nil
	}

	logger.Info("seeding database")
	faker := gofakeit.New(0)
	now := time.Now().UTC()

	for i := 0; i < seedPlots; i++ {
		lat := seedCenterLat + (faker.Float64Range(-1, 1) * seedSpread)
		lng := seedCenterLng + (faker.Float64Range(-1, 1) * seedSpread)

		plot := Plot{
			Name:           fmt.Sprintf("Parcela %s %d", faker.Word(), i+1),
			Location:       faker.City(),
			CropType:       seedCrops[i%len(seedCrops)],
			Responsible:    faker.Name(),
			Latitude:       &lat,
			Longitude:      &lng,
			LastIrrigation: now.Add(-time.Duration(faker.IntRange(1, 72)) * time.Hour),
			Deleted:        i >= seedPlots-2, // keep a couple in the deleted view
		}
		if err := db.Create(&plot).Error; err != nil {
			return fmt.Errorf("seeding plot: %w", err)
		}

		for j := 0; j < seedReadingsPerPlot; j++ {
			reading := SensorReading{
				PlotID:      plot.ID,
				RecordedAt:  now.Add(-time.Duration(seedReadingsPerPlot-j) * seedReadingInterval),
				Temperature: faker.Float64Range(16, 38),
				Humidity:    faker.Float64Range(30, 95),
				Rain:        faker.Float64Range(0, 18),
				Sunlight:    faker.Float64Range(20, 100),
			}
			if err := db.Create(&reading).Error; err != nil {
				return fmt.Errorf("seeding reading: %w", err)
			}
		}
	}

	for i := 0; i < seedZones; i++ {
		lat := seedCenterLat + (faker.Float64Range(-1, 1) * seedSpread)
		lng := seedCenterLng + (faker.Float64Range(-1, 1) * seedSpread)
		status := seedStatuses[i%len(seedStatuses)]

		zone := IrrigationZone{
			Sector:         fmt.Sprintf("%c", 'A'+i),
			Name:           fmt.Sprintf("Zona %s", faker.Word()),
			IrrigationType: seedIrrigationTypes[i%len(seedIrrigationTypes)],
			Status:         status,
			Latitude:       &lat,
			Longitude:      &lng,
			ChangedAt:      now.Add(-time.Duration(faker.IntRange(1, 240)) * time.Hour),
		}
		if status != "encendido" && status != "apagado" {
			zone.Reason = faker.Sentence(6)
		}
		if err := db.Create(&zone).Error; err != nil {
			return fmt.Errorf("seeding zone: %w", err)
		}
	}

	logger.Info("database seeded",
		"plots", seedPlots,
		"readings", seedPlots*seedReadingsPerPlot,
		"zones", seedZones,
	)
	return nil
}
