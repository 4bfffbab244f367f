package handlers

import (
	"html/template"
	"net/http"
)

type routeDoc struct {
	Method string
	Path   string
	Body   string
	Notes  string
}

type docSection struct {
	Title  string
	Routes []routeDoc
}

var apiDocs = []docSection{
	{"Match requests", []routeDoc{
		{"POST", "/api/requests", `{"recipientId","format","proposedAt"}`, "Rate limited. format defaults to best_of_3."},
		{"GET", "/api/requests/{id}", "", "Visible to the requester and recipient only."},
		{"POST", "/api/requests/{id}/accept", "", "Recipient only. Returns the request and the new match."},
		{"POST", "/api/requests/{id}/decline", "", "Recipient only."},
		{"POST", "/api/requests/{id}/withdraw", "", "Requester only."},
	}},
	{"Matches", []routeDoc{
		{"GET", "/api/matches/{id}", "", ""},
		{"POST", "/api/matches/{id}/result", `{"format","sets":[{"p1","p2"}]}`, "Rate limited. Either participant; match must be accepted."},
		{"POST", "/api/matches/{id}/confirm", "", "The participant who did not submit. Applies ratings."},
		{"POST", "/api/matches/{id}/dispute", `{"reason"}`, "The participant who did not submit."},
		{"POST", "/api/matches/{id}/cancel", "", "Either participant, before a result is submitted."},
		{"GET", "/ws/matches/{id}", "", "Websocket status feed for participants. Pass the token as ?token=."},
	}},
	{"Courts", []routeDoc{
		{"POST", "/api/courts/{courtId}/bookings", `{"startsAt","endsAt","matchId"}`, "Rate limited. Half-open interval; back-to-back slots are allowed."},
		{"GET", "/api/courts/{courtId}/bookings?from=&to=", "", "RFC 3339 bounds; defaults to the next 7 days."},
		{"POST", "/api/bookings/{id}/cancel", "", "Booker only, before the slot starts."},
	}},
	{"Players", []routeDoc{
		{"GET", "/api/players/{id}/rating-history?limit=", "", "Newest first. limit defaults to 20, at most 100."},
	}},
	{"Operations", []routeDoc{
		{"GET", "/health", "", "No auth."},
		{"GET", "/metrics", "", "Prometheus exposition. No auth."},
	}},
}

var apiErrors = []struct {
	Status int
	Code   string
}{
	{400, "invalid_input"},
	{401, "unauthorized"},
	{403, "forbidden"},
	{403, "self_confirmation"},
	{404, "not_found"},
	{409, "invalid_state"},
	{409, "slot_conflict"},
	{422, "invalid_score"},
	{422, "past_booking"},
	{429, "rate_limited"},
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Courtmatch API</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 960px; margin: 40px auto; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 24px; }
th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #ddd; vertical-align: top; }
code { background: #f4f4f4; padding: 1px 4px; border-radius: 3px; }
.method { font-weight: 600; color: #2d6a4f; }
</style>
</head>
<body>
<h1>Courtmatch API</h1>
<p>Every <code>/api</code> and <code>/ws</code> route needs <code>Authorization: Bearer &lt;token&gt;</code>.
Errors are JSON: <code>{"error": "...", "code": "..."}</code>.</p>
{{range .Sections}}
<h2>{{.Title}}</h2>
<table>
<tr><th>Method</th><th>Path</th><th>Body</th><th>Notes</th></tr>
{{range .Routes}}<tr><td class="method">{{.Method}}</td><td><code>{{.Path}}</code></td><td>{{if .Body}}<code>{{.Body}}</code>{{end}}</td><td>{{.Notes}}</td></tr>
{{end}}</table>
{{end}}
<h2>Error codes</h2>
<table>
<tr><th>Status</th><th>Code</th></tr>
{{range .Errors}}<tr><td>{{.Status}}</td><td><code>{{.Code}}</code></td></tr>
{{end}}</table>
</body>
</html>`))

// ServeAPIDocs handles GET /docs
func ServeAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	docsTemplate.Execute(w, map[string]interface{}{
		"Sections": apiDocs,
		"Errors":   apiErrors,
	})
}
