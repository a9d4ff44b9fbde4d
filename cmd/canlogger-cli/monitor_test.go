package main

import "testing"

func TestListenAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"8080", ":8080"},
		{":8080", ":8080"},
		{"localhost:8080", "localhost:8080"},
		{"0.0.0.0:9000", "0.0.0.0:9000"},
	}

	for _, tc := range tests {
		if got := listenAddress(tc.in); got != tc.want {
			t.Errorf("listenAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
