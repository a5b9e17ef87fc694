package webhook

import (
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	envURL    = "WEBHOOK_URL"
	envSecret = "WEBHOOK_SECRET"
	envEvents = "WEBHOOK_EVENTS"
)

// Endpoint is one configured webhook receiver.
type Endpoint struct {
	URL    string
	Secret string
	// Events restricts delivery to the listed event names. Empty means all.
	Events []string
}

// Accepts reports whether the endpoint wants event.
func (e Endpoint) Accepts(event Event) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, name := range e.Events {
		if name == string(event) {
			return true
		}
	}
	return false
}

// EndpointsFromEnv reads the primary endpoint from WEBHOOK_URL, WEBHOOK_SECRET
// and WEBHOOK_EVENTS, followed by every WEBHOOK_URL_<n> endpoint in ascending
// order of n.
func EndpointsFromEnv() []Endpoint {
	return endpointsFrom(os.LookupEnv, os.Environ())
}

func endpointsFrom(lookup func(string) (string, bool), environ []string) []Endpoint {
	var out []Endpoint
	if ep, ok := endpointFor(lookup, ""); ok {
		out = append(out, ep)
	}
	for _, n := range numberedSuffixes(environ) {
		if ep, ok := endpointFor(lookup, "_"+strconv.Itoa(n)); ok {
			out = append(out, ep)
		}
	}
	return out
}

func endpointFor(lookup func(string) (string, bool), suffix string) (Endpoint, bool) {
	url, _ := lookup(envURL + suffix)
	url = strings.TrimSpace(url)
	if url == "" {
		return Endpoint{}, false
	}
	secret, _ := lookup(envSecret + suffix)
	events, _ := lookup(envEvents + suffix)
	return Endpoint{URL: url, Secret: secret, Events: splitEvents(events)}, true
}

func numberedSuffixes(environ []string) []int {
	seen := map[int]struct{}{}
	prefix := envURL + "_"
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil || n <= 0 {
			continue
		}
		seen[n] = struct{}{}
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func splitEvents(raw string) []string {
	var out []string
	for _, e := range strings.Split(raw, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
