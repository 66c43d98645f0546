package fetch

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "http://secure-proxy.internal:3128", "tesouro.gov.br")

	tests := []struct {
		url  string
		want string
	}{
		{"http://news.example.com/rss", "http://proxy.internal:3128"},
		{"https://news.example.com/rss", "http://secure-proxy.internal:3128"},
		{"https://apidatalake.tesouro.gov.br/api", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy failed: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("Expected no proxy, got %v", got)
				}
				return
			}
			if got == nil || got.String() != tt.want {
				t.Errorf("Expected %s, got %v", tt.want, got)
			}
		})
	}
}
