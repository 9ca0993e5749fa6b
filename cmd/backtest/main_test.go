package main

import (
	"reflect"
	"testing"

	"github.com/rickgao/market-etl/internal/backtest"
)

func TestSplitTickers(t *testing.T) {
	got := splitTickers(" aapl, MSFT,,nvda ")
	want := []string{"AAPL", "MSFT", "NVDA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitTickers() = %v, want %v", got, want)
	}
	if got := splitTickers(""); got != nil {
		t.Errorf("splitTickers(\"\") = %v, want nil", got)
	}
}

func TestValidate(t *testing.T) {
	ok := backtest.DefaultConfig()
	if err := validate(ok); err != nil {
		t.Fatalf("validate(default) error = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*backtest.Config)
	}{
		{"no tickers", func(c *backtest.Config) { c.Tickers = nil }},
		{"no benchmark", func(c *backtest.Config) { c.Benchmark = "" }},
		{"zero threshold", func(c *backtest.Config) { c.Threshold = 0 }},
		{"full threshold", func(c *backtest.Config) { c.Threshold = 1 }},
		{"negative capital", func(c *backtest.Config) { c.Capital = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := backtest.DefaultConfig()
			tt.modify(&cfg)
			if err := validate(cfg); err == nil {
				t.Error("validate() error = nil, want error")
			}
		})
	}
}
