// Package server owns the agent's interception boundary: the Fiber app that
// answers every request, the request-ID middleware, and the shared upstream
// HTTP client. Requests under the /-/ control prefix bypass the caching agent
// and fall through to the control-channel routes; everything else is handed to
// the injected agent handler, which must always produce a response.
package server
