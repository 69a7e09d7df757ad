package dispatch

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is one backend URL together with the proxy prefixes that may be
// put in front of it. Proxies are tried in order, the raw URL last.
type Endpoint struct {
	URL     string   `yaml:"url"`
	Proxies []string `yaml:"proxies,omitempty"`
}

// Candidate is a single (endpoint, proxy) pair the dispatcher will attempt.
// Proxy is empty for the unproxied attempt.
type Candidate struct {
	EndpointIndex int
	ProxyIndex    int
	Endpoint      string
	Proxy         string
}

// URL returns the address the candidate is sent to. A proxy prefix is used
// verbatim and the endpoint is appended percent-encoded.
func (c Candidate) URL() string {
	if c.Proxy == "" {
		return c.Endpoint
	}
	return c.Proxy + url.QueryEscape(c.Endpoint)
}

func (c Candidate) Proxied() bool {
	return c.Proxy != ""
}

func (c Candidate) String() string {
	if c.Proxy == "" {
		return fmt.Sprintf("endpoint %d (direct)", c.EndpointIndex+1)
	}
	return fmt.Sprintf("endpoint %d via proxy %d", c.EndpointIndex+1, c.ProxyIndex+1)
}

// Candidates expands endpoints into the ordered attempt list: for every
// endpoint, each proxy in index order followed by the unproxied URL.
func Candidates(endpoints []Endpoint) []Candidate {
	ret := []Candidate{}
	for i, e := range endpoints {
		u := strings.TrimSpace(e.URL)
		if u == "" {
			continue
		}
		for j, p := range e.Proxies {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			ret = append(ret, Candidate{
				EndpointIndex: i,
				ProxyIndex:    j,
				Endpoint:      u,
				Proxy:         p,
			})
		}
		ret = append(ret, Candidate{
			EndpointIndex: i,
			ProxyIndex:    len(e.Proxies),
			Endpoint:      u,
		})
	}
	return ret
}

// WithSharedProxies attaches the same proxy list to every url.
func WithSharedProxies(urls []string, proxies []string) []Endpoint {
	ret := make([]Endpoint, 0, len(urls))
	for _, u := range urls {
		ret = append(ret, Endpoint{
			URL:     u,
			Proxies: append([]string(nil), proxies...),
		})
	}
	return ret
}

// Direct builds endpoints without any proxies.
func Direct(urls ...string) []Endpoint {
	return WithSharedProxies(urls, nil)
}
