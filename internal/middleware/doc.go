// Package middleware provides HTTP middleware for the conversion API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labeled by route template
//   - Response compression for JSON and text bodies
package middleware
