// dephealth_test.go — unit-тесты построения пути проверки PowerDNS-Admin.
package service

import (
	"testing"
)

// TestPDNSHealthPath проверяет склейку префикса базового URL и пути проверки.
func TestPDNSHealthPath(t *testing.T) {
	tests := []struct {
		name       string
		baseURL    string
		healthPath string
		expected   string
	}{
		{
			name:       "без префикса",
			baseURL:    "https://pdns.example.com",
			healthPath: "/login",
			expected:   "/login",
		},
		{
			name:       "корневой слэш",
			baseURL:    "https://pdns.example.com/",
			healthPath: "/login",
			expected:   "/login",
		},
		{
			name:       "путь без ведущего слэша",
			baseURL:    "http://pdns.example.com:9191",
			healthPath: "ping",
			expected:   "/ping",
		},
		{
			name:       "префикс публикации",
			baseURL:    "https://example.com/pdns/",
			healthPath: "/login",
			expected:   "/pdns/login",
		},
		{
			name:       "пустой путь — /login",
			baseURL:    "https://example.com/pdns",
			healthPath: "",
			expected:   "/pdns/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pdnsHealthPath(tt.baseURL, tt.healthPath)
			if result != tt.expected {
				t.Errorf("pdnsHealthPath(%q, %q) = %q, ожидалось %q", tt.baseURL, tt.healthPath, result, tt.expected)
			}
		})
	}
}
