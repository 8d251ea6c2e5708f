// Package web serves the live decision dashboard
package web

import (
	"bytes"
	"crypto/subtle"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// Dashboard serves the dashboard page. It uses the same credentials as the WebSocket feed,
// so the browser already holds them when the page opens the feed.
type Dashboard struct {
	username string
	password string
	page     []byte
}

// NewDashboard renders the page for the feed at wsPath
func NewDashboard(wsPath, username, password string) (*Dashboard, error) {
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, struct{ WSPath string }{wsPath}); err != nil {
		return nil, err
	}
	return &Dashboard{username: username, password: password, page: buf.Bytes()}, nil
}

// ServeHTTP serves the dashboard HTML
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="AI Shield"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	_, _ = w.Write(d.page)
}

func (d *Dashboard) authorized(r *http.Request) bool {
	if d.username == "" && d.password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(d.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(d.password)) == 1
	return userOK && passOK
}
