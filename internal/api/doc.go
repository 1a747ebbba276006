// Package api serves the render job HTTP surface: submission, status,
// cancellation, live websocket progress, and health.
package api
