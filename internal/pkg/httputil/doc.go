// Package httputil provides the shared JSON envelope for all API handlers.
//
// Every endpoint responds with {"success": true, "data": ...} or
// {"success": false, "error": "..."} so the admin client can treat all
// responses uniformly. Handlers should use these helpers instead of writing
// to the http.ResponseWriter directly.
package httputil
