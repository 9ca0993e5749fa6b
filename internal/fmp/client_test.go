package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/market-etl/internal/fetch"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	hc := fetch.NewClient(fetch.WithRetries(0, 0), fetch.WithTimeout(5*time.Second))
	return NewClient(hc, server.URL, "test-key", nil)
}

func TestConstituents_EndpointFallback(t *testing.T) {
	var tried atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		tried.Add(1)
		if r.URL.Query().Get("apikey") != "test-key" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/stable/sp500_constituents":
			http.Error(w, "Legacy Endpoint", http.StatusForbidden)
		case "/stable/sp500_constituent":
			fmt.Fprint(w, `[]`)
		case "/api/v3/sp500_constituents":
			fmt.Fprint(w, `{"data":[{"symbol":"AAPL","name":"Apple Inc.","sector":"Information Technology"},{"symbol":"MSFT","name":"Microsoft"}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	members, err := c.Constituents(context.Background(), Endpoints["sp500"])
	if err != nil {
		t.Fatalf("Constituents() error = %v", err)
	}
	if len(members) != 2 || members[0].Sector != "Information Technology" {
		t.Errorf("members = %+v", members)
	}
	if got := tried.Load(); got != 3 {
		t.Errorf("tried %d endpoints, want 3", got)
	}
}

func TestConstituents_AllFail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message":"Invalid API KEY."}`)
	})

	_, err := c.Constituents(context.Background(), Endpoints["dow"])
	if !errors.Is(err, ErrNoConstituents) {
		t.Errorf("Constituents() error = %v, want ErrNoConstituents", err)
	}
}

func TestQuotes_Batches(t *testing.T) {
	var mu sync.Mutex
	var batches []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		symbols := strings.Split(strings.TrimPrefix(r.URL.Path, "/stable/quote/"), ",")
		mu.Lock()
		batches = append(batches, len(symbols))
		mu.Unlock()
		if symbols[0] == "S100" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		quotes := make([]map[string]any, 0, len(symbols))
		for i, s := range symbols {
			quotes = append(quotes, map[string]any{"symbol": s, "price": float64(i) + 0.5})
		}
		json.NewEncoder(w).Encode(quotes)
	})

	symbols := make([]string, 150)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d", i)
	}

	quotes, err := c.Quotes(context.Background(), symbols)
	if err != nil {
		t.Fatalf("Quotes() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 2 || batches[0] != 100 || batches[1] != 50 {
		t.Errorf("batches = %v, want [100 50]", batches)
	}
	if len(quotes) != 100 {
		t.Errorf("len(quotes) = %d, want 100 (failed batch skipped)", len(quotes))
	}
	if p := quotes["S001"].Price; p == nil || *p != 1.5 {
		t.Errorf("S001 price = %v, want 1.5", p)
	}
}

func TestIndexConstituents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/stable/dowjones_constituent":
			fmt.Fprint(w, `[{"symbol":"GS","name":"Goldman Sachs"},{"symbol":""},{"symbol":"KO","name":""}]`)
		case strings.HasPrefix(r.URL.Path, "/stable/quote/"):
			fmt.Fprint(w, `[{"symbol":"GS","name":"Goldman Sachs Group","price":470.1,"change":-2.5,"changesPercentage":-0.53,"marketCap":152000000000},{"symbol":"KO","name":"Coca-Cola","price":null}]`)
		default:
			http.NotFound(w, r)
		}
	})

	rows, err := c.IndexConstituents(context.Background(), "dow")
	if err != nil {
		t.Fatalf("IndexConstituents() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	gs := rows[0]
	if gs.No != 1 || gs.Price != 470.1 || gs.NetChange != -2.5 || gs.Change != -0.53 || gs.MarketCap != 1.52e11 {
		t.Errorf("GS = %+v", gs)
	}
	if rows[1].Name != "Coca-Cola" || rows[1].Price != 0 || rows[1].No != 2 {
		t.Errorf("KO = %+v, want quote name and zero price", rows[1])
	}

	if _, err := c.IndexConstituents(context.Background(), "ftse"); err == nil {
		t.Error("IndexConstituents(ftse) error = nil, want error")
	}
}
