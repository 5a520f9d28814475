// Package api implements the HTTP REST API for wellsteerd.
//
// New(link, coord, agg, ovr, alerts) returns an http.Handler that serves:
//
//	GET  /api/v1/health               — status, link state, survey count
//	GET  /api/v1/snapshot             — current derived steering values
//	GET  /api/v1/sample               — latest telemetry sample
//	POST /api/v1/nudge                — what-if toolface projection
//	GET  /api/v1/alerts               — firing and recently resolved alerts
//	GET  /api/v1/connection/state     — link state
//	POST /api/v1/connection/connect   — open the link
//	POST /api/v1/connection/disconnect
//	POST /api/v1/connection/test      — throwaway reachability check
//	POST /api/v1/connection/command   — fire-and-forget rig command
//	GET/PUT /api/v1/connection/config — whole-value config replace
//	GET/POST /api/v1/surveys          — list / add (409 on duplicate)
//	PUT/DELETE /api/v1/surveys/{id}   — upsert / remove
//	GET/PUT /api/v1/target            — target line
//	GET /api/v1/overrides             — active manual overrides
//	PUT/DELETE /api/v1/overrides/{field}
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. JSON types are defined in types.go. No external
// HTTP framework is used; /metrics is mounted by the daemon alongside this
// handler.
package api
