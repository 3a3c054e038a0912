package worker

import (
	"testing"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

func TestPolicyRoute(t *testing.T) {
	prod := DefaultPolicy()
	dev := DefaultPolicy()
	dev.DevMode = true
	mixed := DefaultPolicy()
	mixed.PassthroughHosts = []string{"Staging.Example.com"}

	tests := []struct {
		name   string
		policy Policy
		url    string
		want   Route
	}{
		{"dev mode static", dev, "https://example.com/app.js", RoutePassthrough},
		{"dev mode api", dev, "https://example.com/api/items", RoutePassthrough},
		{"localhost static", prod, "http://localhost:3000/app.js", RoutePassthrough},
		{"localhost api", prod, "http://localhost/api", RoutePassthrough},
		{"localhost subdomain", prod, "http://app.localhost/api", RoutePassthrough},
		{"uppercase localhost", prod, "http://LOCALHOST:3000/app.js", RoutePassthrough},
		{"mixed case localhost", prod, "http://LocalHost/x.png", RoutePassthrough},
		{"mixed case configured host", mixed, "https://staging.example.com/app.js", RoutePassthrough},
		{"configured host other origin", mixed, "https://example.com/app.js", RouteStaticAsset},
		{"js", prod, "https://example.com/app.js", RouteStaticAsset},
		{"css", prod, "https://example.com/styles/site.css", RouteStaticAsset},
		{"html", prod, "https://example.com/index.html", RouteStaticAsset},
		{"json contains .js", prod, "https://example.com/data.json", RouteStaticAsset},
		{"query contains .css", prod, "https://example.com/api?file=a.css", RouteStaticAsset},
		{"localhost only in path", prod, "https://example.com/localhost/x", RouteIgnore},
		{"api", prod, "https://example.com/api/items", RouteIgnore},
		{"image", prod, "https://example.com/logo.png", RouteIgnore},
		{"root", prod, "https://example.com/", RouteIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := fetch.NewRequest(tt.url)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}
			if got := tt.policy.Route(req); got != tt.want {
				t.Errorf("Route(%s) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestPolicyRouteForwardedHost(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		forwarded string
		want      Route
	}{
		{"upstream localhost, public client", "http://localhost:3000/app.js", "app.example.com", RouteStaticAsset},
		{"upstream public, localhost client", "http://10.0.0.5:3000/app.js", "localhost:8080", RoutePassthrough},
		{"uppercase forwarded", "http://10.0.0.5:3000/app.js", "LOCALHOST:8080", RoutePassthrough},
		{"first entry wins", "http://10.0.0.5:3000/app.js", "app.example.com, localhost", RouteStaticAsset},
		{"no header", "http://localhost:3000/app.js", "", RoutePassthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustRequest(t, tt.url)
			if tt.forwarded != "" {
				req.Header.Set(ForwardedHostHeader, tt.forwarded)
			}
			if got := DefaultPolicy().Route(req); got != tt.want {
				t.Errorf("Route(%s via %q) = %s, want %s", tt.url, tt.forwarded, got, tt.want)
			}
		})
	}
}

func TestPolicyRouteNil(t *testing.T) {
	if got := DefaultPolicy().Route(nil); got != RouteIgnore {
		t.Errorf("Route(nil) = %s, want ignore", got)
	}
}

func TestDecide(t *testing.T) {
	ok := response(200, fetch.TypeBasic, "x")
	notFound := response(404, fetch.TypeBasic, "x")

	tests := []struct {
		name  string
		route Route
		resp  *fetch.Response
		err   error
		want  Decision
	}{
		{"passthrough ok", RoutePassthrough, ok, nil, Decision{Action: ActionServeNetwork}},
		{"passthrough failed", RoutePassthrough, nil, errOffline, Decision{Action: ActionServeCache}},
		{"static cacheable", RouteStaticAsset, ok, nil, Decision{Action: ActionServeNetwork, WriteBack: true}},
		{"static not found", RouteStaticAsset, notFound, nil, Decision{Action: ActionServeNetwork}},
		{"static failed", RouteStaticAsset, nil, errOffline, Decision{Action: ActionServeCache}},
		{"ignore", RouteIgnore, ok, nil, Decision{Action: ActionIgnore}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.route, tt.resp, tt.err); got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		name string
		resp *fetch.Response
		want bool
	}{
		{"200 basic", response(200, fetch.TypeBasic, ""), true},
		{"201 basic", response(201, fetch.TypeBasic, ""), false},
		{"304 basic", response(304, fetch.TypeBasic, ""), false},
		{"500 basic", response(500, fetch.TypeBasic, ""), false},
		{"200 cors", response(200, fetch.TypeCORS, ""), false},
		{"opaque", response(0, fetch.TypeOpaque, ""), false},
		{"opaque redirect", response(0, fetch.TypeOpaqueRedirect, ""), false},
		{"error", errorResponse(), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		if got := Cacheable(tt.resp); got != tt.want {
			t.Errorf("%s: Cacheable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
