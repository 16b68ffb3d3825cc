package main

import (
	"testing"

	"HiLoBacktester/internal/collector"
	"HiLoBacktester/internal/config"
)

func TestBenchmarkFetcher(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		csvFile string
		want    bool
	}{
		{"yahoo", "yahoo", "", true},
		{"csv cache dir", "csv", "", true},
		{"single csv file", "yahoo", "asset.csv", false},
		{"mock", "mock", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load("")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			cfg.Data.Source = tt.source
			asset := newFetcher(cfg, tt.csvFile)
			got := benchmarkFetcher(cfg, tt.csvFile, asset)
			if (got != nil) != tt.want {
				t.Errorf("expected benchmark source %v, got %v", tt.want, got)
			}
			if _, single := asset.(*collector.CSVFetcher); single && tt.csvFile != "" && got != nil {
				t.Error("a single-file source must not serve the benchmark")
			}
		})
	}
}
