// Package views contains the templ components for the panel pages.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// navLink is one entry of the signed-in navigation bar.
type navLink struct {
	Path  string
	Label string
}

var navLinks = []navLink{
	{Path: "/dashboard", Label: "Panel"},
	{Path: "/estadisticas", Label: "Estadísticas"},
	{Path: "/parcelasEliminadas", Label: "Parcelas eliminadas"},
	{Path: "/valoresOptimos", Label: "Valores óptimos"},
	{Path: "/zonasRiego", Label: "Zonas de riego"},
}

// Layout wraps page content with the document shell and, when a user
// is signed in, the navigation bar.
func Layout(title, active, userName string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s · AgroVista</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<link rel="stylesheet" href="/static/panel.css">
</head>
<body>
`, templ.EscapeString(title)); err != nil {
			return err
		}

		if userName != "" {
			if err := renderNav(w, active, userName); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `<main class="content">`); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>\n</body>\n</html>\n")
		return err
	})
}

func renderNav(w io.Writer, active, userName string) error {
	if _, err := io.WriteString(w, `<nav class="topbar"><span class="brand">AgroVista</span><ul>`); err != nil {
		return err
	}
	for _, link := range navLinks {
		class := ""
		if link.Path == active {
			class = ` class="active"`
		}
		if _, err := fmt.Fprintf(w, `<li%s><a href="%s">%s</a></li>`,
			class, link.Path, templ.EscapeString(link.Label)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, `</ul><div class="session"><span>%s</span>`+
		`<form method="post" action="/logout"><button type="submit">Salir</button></form>`+
		`</div></nav>`, templ.EscapeString(userName))
	return err
}

// ErrorPage renders a minimal error page.
func ErrorPage(message string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="error"><h1>Algo salió mal</h1><p>%s</p>`+
			`<a href="/dashboard">Volver al panel</a></section>`, templ.EscapeString(message))
		return err
	})
}
