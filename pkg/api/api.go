// Package api holds the JSON schema of the node HTTP API and a client for it.
// Implementation of the server lives in internal/api.
package api
