// Package server serves pipeline runs over HTTP. A Gin engine is mounted on a
// ServeMux and served over HTTP/1.1 and h2c on a single port, with the
// middleware stack applied around the whole mux.
//
// # Routes
//
//   - POST /v1/runs: start a run and stream its results as server-sent events;
//     at most Config.MaxConcurrentRuns run at once, the rest get 503
//   - GET /health: component health aggregation
//   - GET /alive, GET /ready: liveness and readiness probes
//   - GET /info, GET /version: build and process information
//
// # Middleware
//
// Recovery, request ID, tracing, request metrics, CORS, body-size limit and
// request logging (server/middleware).
//
// The server implements component.Component so bootstrap starts and stops it
// with the rest of the application.
package server
