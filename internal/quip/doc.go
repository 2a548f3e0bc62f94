// Package quip is a minimal client for the Quip platform API covering what the
// credential subsystem needs: resolving the authenticated user and probing
// reachability.
//
// Requests carry the personal access token as a bearer credential through an
// oauth2.Transport over a static token source:
//
//	c, err := quip.NewClient(baseURL, token)
//	user, err := c.CurrentUser(ctx)
//
// Transport timeouts are fixed: 10s to connect, 90s to receive response headers.
// Use WithTransport to substitute the base transport (tests, proxies).
package quip
