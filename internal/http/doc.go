// Package http exposes the meetgrid API over net/http.
//
// The router serves:
//   - POST /sessions: creates a session. Response 201 {"session_id","created_at"}.
//     Rate limited per client address.
//   - GET /sessions/{id}: returns {"session":{"id","created_at"},"participants":[...]}.
//   - POST /sessions/{id}/participants: joins the signed-in participant. 204.
//   - POST /sessions/{id}/availability: publishes {"from","to","busy":[{"start","end"}]}
//     for the signed-in participant. Response {"ok":true}.
//   - GET /sessions/{id}/availability?from=&to=: returns the aggregated grid
//     {"slots":[{"start","end","count"}],"participants":n}.
//   - POST /sessions/{id}/availability/sync: fetches the caller's calendar for
//     {"from","to"}, publishes it and returns the aggregated grid.
//   - POST /calendar/busy: returns the caller's busy intervals for {"from","to"},
//     defaulting to the next seven days.
//   - GET /auth/google/login, GET /auth/google/callback, POST /auth/logout:
//     Google sign-in and the meetgrid_session cookie.
//   - GET /healthz: liveness.
//
// Errors are JSON {"error_code","message","errors"}. Timestamps are RFC 3339.
package http
