package client

import "net/http"

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Use it to set
// custom timeouts or transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}
