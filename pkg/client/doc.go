// Package client is the Go client for the Catena REST API used by the CLI.
//
// Non-2xx responses are returned as *APIError, which unwraps to the matching
// error kind so callers can use errors.Is(err, types.ErrNotFound).
package client
