package dashboard

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"

	"agrovista.dev/panel/internal/dashboard/views"
)

// renderPage renders a full page inside the layout.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name, title string, content templ.Component) {
	userName := ""
	if user, ok := s.state.User(); ok {
		userName = user.Name
	}
	s.render(w, r, name, views.Layout(title, r.URL.Path, userName, content))
}

// render writes a component, tracking render time and failures.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := s.trackRender(name, func() error {
		return component.Render(r.Context(), w)
	})
	if err != nil {
		s.logger.Error("failed to render view", "view", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// trackRender wraps view rendering with metrics tracking.
func (s *Server) trackRender(name string, renderFunc func() error) error {
	if s.metrics == nil {
		return renderFunc()
	}

	timer := prometheus.NewTimer(s.metrics.TemplateRenderTime.WithLabelValues(name))
	defer timer.ObserveDuration()

	if err := renderFunc(); err != nil {
		s.metrics.TemplateRenderErrors.WithLabelValues(name, "render_error").Inc()
		return err
	}
	return nil
}
