package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ReadingCard is one sensor channel card on the dashboard.
type ReadingCard struct {
	Label  string
	Value  string
	Unit   string
	Failed bool
	NoData bool
}

// PlotRow is one row of a plot table.
type PlotRow struct {
	ID             int64
	Name           string
	Location       string
	CropType       string
	Responsible    string
	LastIrrigation string
	Coordinates    string
}

// DashboardVM is the data for the main panel page.
type DashboardVM struct {
	Cards       []ReadingCard
	UpdatedAt   string
	Plots       []PlotRow
	MarkersJSON string
	StaleError  string
}

// DashboardPage renders the main panel: reading cards, the plot map and
// the active plot table. The card block carries an htmx polling hook so
// the visible values follow the server state between full page loads.
func DashboardPage(vm DashboardVM) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if vm.StaleError != "" {
			if _, err := fmt.Fprintf(w, `<div class="stale-warning" role="alert">%s</div>`,
				templ.EscapeString(vm.StaleError)); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w,
			`<section id="reading-cards" hx-get="/api/fragments/latest" hx-trigger="every 30s" hx-swap="outerHTML">`); err != nil {
			return err
		}
		if err := renderCards(w, vm.Cards, vm.UpdatedAt); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</section>`); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<section class="map"><div id="map"></div></section>`); err != nil {
			return err
		}
		if err := renderMapScript(w, vm.MarkersJSON); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<section class="plots"><h2>Parcelas activas</h2>`); err != nil {
			return err
		}
		if err := renderPlotTable(w, vm.Plots, "No hay parcelas activas."); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// LatestCardsFragment renders just the reading card block, for htmx.
func LatestCardsFragment(cards []ReadingCard, updatedAt string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w,
			`<section id="reading-cards" hx-get="/api/fragments/latest" hx-trigger="every 30s" hx-swap="outerHTML">`); err != nil {
			return err
		}
		if err := renderCards(w, cards, updatedAt); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

func renderCards(w io.Writer, cards []ReadingCard, updatedAt string) error {
	if _, err := io.WriteString(w, `<div class="cards">`); err != nil {
		return err
	}
	for _, c := range cards {
		value := templ.EscapeString(c.Value)
		class := "card"
		switch {
		case c.Failed:
			class = "card card-error"
			value = "Error"
		case c.NoData:
			class = "card card-nodata"
			value = "Sin datos"
		}
		if _, err := fmt.Fprintf(w, `<div class="%s"><span class="label">%s</span><span class="value">%s</span><span class="unit">%s</span></div>`,
			class, templ.EscapeString(c.Label), value, templ.EscapeString(c.Unit)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, `</div>`); err != nil {
		return err
	}
	if updatedAt != "" {
		if _, err := fmt.Fprintf(w, `<p class="updated">Actualizado: %s</p>`, templ.EscapeString(updatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func renderPlotTable(w io.Writer, rows []PlotRow, emptyMsg string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, `<p class="empty">%s</p>`, templ.EscapeString(emptyMsg))
		return err
	}

	if _, err := io.WriteString(w, `<table><thead><tr><th>Nombre</th><th>Ubicación</th><th>Cultivo</th><th>Responsable</th><th>Último riego</th><th>Coordenadas</th></tr></thead><tbody>`); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			templ.EscapeString(r.Name),
			templ.EscapeString(r.Location),
			templ.EscapeString(r.CropType),
			templ.EscapeString(r.Responsible),
			templ.EscapeString(r.LastIrrigation),
			templ.EscapeString(r.Coordinates)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</tbody></table>`)
	return err
}

// renderMapScript emits the Leaflet bootstrap for a marker set. The
// marker JSON is produced server-side by the reconciler's view surface,
// never assembled in the browser.
func renderMapScript(w io.Writer, markersJSON string) error {
	if markersJSON == "" {
		markersJSON = "[]"
	}
	_, err := fmt.Fprintf(w, `<script>
(function(){
  var markers = %s;
  var map = L.map('map');
  L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {maxZoom: 19}).addTo(map);
  var group = [];
  markers.forEach(function(m){
    var marker = L.circleMarker([m.lat, m.lng], {color: m.color || '#4CAF50', radius: 9});
    marker.bindPopup('<strong>' + m.label + '</strong><br>' + (m.detail || ''));
    marker.addTo(map);
    group.push(marker);
  });
  if (group.length > 0) {
    map.fitBounds(L.featureGroup(group).getBounds(), {padding: [50, 50], maxZoom: 15});
  } else {
    map.setView([21.06, -86.89], 10);
  }
})();
</script>`, markersJSON)
	return err
}

// ChannelStat is one channel row of the statistics page.
type ChannelStat struct {
	Label      string
	Average    string
	Normalized string
	Unit       string
}

// StatsVM is the data for the statistics page.
type StatsVM struct {
	Window        int
	WindowSizes   []int
	LabelsJSON    string
	SeriesJSON    string
	Channels      []ChannelStat
	PolarJSON     string
	HistoryLength int
}

// StatsPage renders the historical charts and per-channel averages.
func StatsPage(vm StatsVM) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="stats"><h1>Estadísticas</h1><form method="get" action="/estadisticas" class="window-select"><label>Puntos: <select name="window" onchange="this.form.submit()">`); err != nil {
			return err
		}
		for _, size := range vm.WindowSizes {
			label := fmt.Sprintf("%d", size)
			if size == 0 {
				label = "Todos"
			}
			selected := ""
			if size == vm.Window {
				selected = " selected"
			}
			if _, err := fmt.Fprintf(w, `<option value="%d"%s>%s</option>`, size, selected, label); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `</select></label><span class="hint">%d lecturas en total</span></form>`, vm.HistoryLength); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<div class="charts"><canvas id="series-chart"></canvas><canvas id="polar-chart"></canvas></div>`); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<h2>Promedios</h2><table><thead><tr><th>Canal</th><th>Promedio</th><th>% del máximo</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, c := range vm.Channels {
			if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s %s</td><td>%s%%</td></tr>`,
				templ.EscapeString(c.Label),
				templ.EscapeString(c.Average),
				templ.EscapeString(c.Unit),
				templ.EscapeString(c.Normalized)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tbody></table></section>`); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, `<script>
new Chart(document.getElementById('series-chart'), {
  type: 'line',
  data: {labels: %s, datasets: %s},
  options: {responsive: true, animation: false}
});
new Chart(document.getElementById('polar-chart'), {
  type: 'polarArea',
  data: %s,
  options: {responsive: true, animation: false}
});
</script>`, vm.LabelsJSON, vm.SeriesJSON, vm.PolarJSON)
		return err
	})
}

// DeletedPlotsPage renders the deleted plot archive.
func DeletedPlotsPage(rows []PlotRow) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="plots"><h1>Parcelas eliminadas</h1>`); err != nil {
			return err
		}
		if err := renderPlotTable(w, rows, "No hay parcelas eliminadas."); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// OptimalRange is one row of the reference values table.
type OptimalRange struct {
	Channel string
	Minimum string
	Maximum string
	Unit    string
	Note    string
}

// OptimalValuesPage renders the static agronomic reference table.
func OptimalValuesPage(rows []OptimalRange) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="optimal"><h1>Valores óptimos</h1><table><thead><tr><th>Canal</th><th>Mínimo</th><th>Máximo</th><th>Observaciones</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s %s</td><td>%s %s</td><td>%s</td></tr>`,
				templ.EscapeString(r.Channel),
				templ.EscapeString(r.Minimum), templ.EscapeString(r.Unit),
				templ.EscapeString(r.Maximum), templ.EscapeString(r.Unit),
				templ.EscapeString(r.Note)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></section>`)
		return err
	})
}

// ZoneRow is one irrigation zone row.
type ZoneRow struct {
	Sector    string
	Name      string
	Status    string
	Color     string
	Type      string
	Reason    string
	ChangedAt string
}

// ZonesVM is the data for the irrigation zones page.
type ZonesVM struct {
	CountsJSON  string
	Rows        []ZoneRow
	Troubled    []ZoneRow
	MarkersJSON string
	UpdatedAt   string
	StaleError  string
}

// ZonesPage renders zone statuses: the pie chart, the zone map and the
// troubled-zone detail.
func ZonesPage(vm ZonesVM) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="zones"><h1>Zonas de riego</h1>`); err != nil {
			return err
		}
		if vm.StaleError != "" {
			if _, err := fmt.Fprintf(w, `<div class="stale-warning" role="alert">%s</div>`,
				templ.EscapeString(vm.StaleError)); err != nil {
				return err
			}
		}
		if vm.UpdatedAt != "" {
			if _, err := fmt.Fprintf(w, `<p class="updated">Actualizado: %s</p>`, templ.EscapeString(vm.UpdatedAt)); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `<div class="zone-grid"><canvas id="zone-chart"></canvas><div id="map"></div></div>`); err != nil {
			return err
		}
		if err := renderMapScript(w, vm.MarkersJSON); err != nil {
			return err
		}

		if err := renderZoneTable(w, "Todas las zonas", vm.Rows); err != nil {
			return err
		}
		if len(vm.Troubled) > 0 {
			if err := renderZoneTable(w, "Zonas con atención requerida", vm.Troubled); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</section>`); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, `<script>
new Chart(document.getElementById('zone-chart'), {
  type: 'pie',
  data: %s,
  options: {responsive: true, animation: false}
});
</script>`, vm.CountsJSON)
		return err
	})
}

func renderZoneTable(w io.Writer, title string, rows []ZoneRow) error {
	if _, err := fmt.Fprintf(w, `<h2>%s</h2>`, templ.EscapeString(title)); err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := io.WriteString(w, `<p class="empty">Sin zonas.</p>`)
		return err
	}

	if _, err := io.WriteString(w, `<table><thead><tr><th>Sector</th><th>Nombre</th><th>Estado</th><th>Tipo</th><th>Motivo</th><th>Desde</th></tr></thead><tbody>`); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td><span class="status" style="background:%s">%s</span></td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			templ.EscapeString(r.Sector),
			templ.EscapeString(r.Name),
			templ.EscapeString(r.Color),
			templ.EscapeString(r.Status),
			templ.EscapeString(r.Type),
			templ.EscapeString(r.Reason),
			templ.EscapeString(r.ChangedAt)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</tbody></table>`)
	return err
}
