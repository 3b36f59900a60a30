// Package server implements the WebSocket ingest endpoint for session
// transports and the HTTP API for monitoring and management. It routes
// incoming chunk and level frames to session processing and streams typed
// session events back to connected clients.
package server
