package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// ProxyHostFor resolves the proxy the browser should use for targetURL,
// as host:port. It returns "" when no proxy applies.
func ProxyHostFor(targetURL, httpProxy, httpsProxy string) string {
	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return ""
	}
	proxyURL, err := NewProxyFunc(httpProxy, httpsProxy)(req)
	if err != nil || proxyURL == nil {
		return ""
	}
	return proxyURL.Host
}
