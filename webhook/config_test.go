package webhook

import (
	"reflect"
	"testing"
)

func envFrom(vars map[string]string) (func(string) (string, bool), []string) {
	environ := make([]string, 0, len(vars))
	for k, v := range vars {
		environ = append(environ, k+"="+v)
	}
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}, environ
}

func TestEndpointsFromEnv(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want []Endpoint
	}{
		{name: "nothing configured", vars: map[string]string{}, want: nil},
		{
			name: "primary only",
			vars: map[string]string{"WEBHOOK_URL": "https://a", "WEBHOOK_SECRET": "s", "WEBHOOK_EVENTS": " task.created , ,task.deleted"},
			want: []Endpoint{{URL: "https://a", Secret: "s", Events: []string{"task.created", "task.deleted"}}},
		},
		{
			name: "numbered endpoints sorted with gaps and beyond five",
			vars: map[string]string{
				"WEBHOOK_URL_12":   "https://twelve",
				"WEBHOOK_URL_2":    "https://two",
				"WEBHOOK_URL_1":    "https://one",
				"WEBHOOK_EVENTS_2": "task.updated",
			},
			want: []Endpoint{
				{URL: "https://one"},
				{URL: "https://two", Events: []string{"task.updated"}},
				{URL: "https://twelve"},
			},
		},
		{
			name: "entries without url are skipped",
			vars: map[string]string{"WEBHOOK_SECRET": "orphan", "WEBHOOK_URL_3": "  ", "WEBHOOK_URL_X": "https://bad", "WEBHOOK_URL_0": "https://zero"},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup, environ := envFrom(tt.vars)
			got := endpointsFrom(lookup, environ)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("endpointsFrom() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEndpointAccepts(t *testing.T) {
	all := Endpoint{URL: "https://a"}
	if !all.Accepts(EventTaskCreated) {
		t.Fatalf("empty allow-list must accept every event")
	}
	some := Endpoint{URL: "https://a", Events: []string{"task.deleted"}}
	if some.Accepts(EventTaskCreated) || !some.Accepts(EventTaskDeleted) {
		t.Fatalf("allow-list not honoured")
	}
}

func TestEndpointsFromProcessEnv(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://primary")
	t.Setenv("WEBHOOK_URL_7", "https://seven")
	got := EndpointsFromEnv()
	if len(got) < 2 || got[0].URL != "https://primary" {
		t.Fatalf("unexpected endpoints %#v", got)
	}
}
