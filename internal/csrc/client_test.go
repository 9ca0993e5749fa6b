package csrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/rickgao/market-etl/internal/fetch"
)

func testClient(serverURL string) *Client {
	httpClient := fetch.NewClient(fetch.WithTimeout(5*time.Second), fetch.WithRetries(0, 0))
	return NewClient(httpClient,
		WithBaseURL(serverURL),
		WithPageDelay(0),
		WithPageRetry(time.Millisecond, 3),
	)
}

func searchHandler(t *testing.T, total int, failFirst int32) (http.HandlerFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != searchPath {
			http.NotFound(w, r)
			return
		}
		if n <= failFirst {
			fmt.Fprint(w, `{"success":false,"message":"busy"}`)
			return
		}

		var params []aoParam
		if err := json.Unmarshal([]byte(r.URL.Query().Get("aoData")), &params); err != nil {
			assert.NoError(t, err, "aoData decode")
			return
		}
		values := map[string]any{}
		for _, p := range params {
			values[p.Name] = p.Value
		}
		assert.Equal(t, FundTypeQDII, values["fundType"])
		assert.Equal(t, ReportTypeSuspend, values["reportTypeCode"])
		assert.Equal(t, "2025-03-10", values["startUploadDate"])
		assert.Equal(t, "2025-03-11", values["endUploadDate"])
		assert.NotEmpty(t, r.URL.Query().Get("_"), "cache buster")

		start := int(values["iDisplayStart"].(float64))
		length := int(values["iDisplayLength"].(float64))
		var rows []Announcement
		for i := start; i < min(start+length, total); i++ {
			rows = append(rows, Announcement{UploadInfoID: fmt.Sprintf("id%d", i), ReportDesp: "暂停大额申购公告"})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"iTotalRecords": total,
			"aaData":        rows,
		})
	}, &calls
}

var (
	from = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
)

func TestClient_Announcements(t *testing.T) {
	handler, calls := searchHandler(t, 45, 0)
	server := httptest.NewServer(handler)
	defer server.Close()

	got, total, err := testClient(server.URL).Announcements(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 45, total)
	require.Len(t, got, 45)
	assert.Equal(t, "id44", got[44].UploadInfoID)
	assert.EqualValues(t, 3, calls.Load(), "one call per page")
}

func TestClient_AnnouncementsRetry(t *testing.T) {
	handler, calls := searchHandler(t, 5, 2)
	server := httptest.NewServer(handler)
	defer server.Close()

	got, total, err := testClient(server.URL).Announcements(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	assert.Len(t, got, 5)
	assert.EqualValues(t, 3, calls.Load(), "2 failures + 1 success")
}

func TestClient_AnnouncementsFirstPageFails(t *testing.T) {
	handler, calls := searchHandler(t, 5, 100)
	server := httptest.NewServer(handler)
	defer server.Close()

	got, total, err := testClient(server.URL).Announcements(context.Background(), from, to)
	require.ErrorIs(t, err, ErrSearchFailed)

	assert.Empty(t, got)
	assert.Zero(t, total)
	assert.EqualValues(t, 3, calls.Load(), "attempts")
}

func TestClient_AnnouncementsLaterPageFails(t *testing.T) {
	handler, _ := searchHandler(t, 45, 0)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		handler(w, r)
	}))
	defer server.Close()

	got, total, err := testClient(server.URL).Announcements(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 45, total)
	assert.Len(t, got, 20, "only the first page")
}

func TestClient_AnnouncementsSiteDown(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// Same retry settings as the jobs use, with short waits.
	httpClient := fetch.NewClient(fetch.WithTimeout(5*time.Second), fetch.WithRetries(3, time.Millisecond))
	client := NewClient(httpClient,
		WithBaseURL(server.URL),
		WithPageDelay(0),
		WithPageRetry(time.Millisecond, 5),
	)

	_, _, err := client.Announcements(context.Background(), from, to)
	require.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, http.StatusServiceUnavailable, fetch.StatusCode(err))
	assert.EqualValues(t, 5, calls.Load(), "one request per page attempt")
}

func TestClient_AnnouncementsClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := testClient(server.URL).Announcements(context.Background(), from, to)
	require.ErrorIs(t, err, ErrSearchFailed)
	assert.EqualValues(t, 1, calls.Load(), "4xx is not retried")
}

func TestClient_DisclosureGBK(t *testing.T) {
	page := disclosurePage(
		[]string{"基金管理人名称", "华夏基金管理有限公司"},
		[]string{"暂停大额申购起始日", "2025-03-12"},
		[]string{"下属分级基金的基金简称", "华夏全球股票(QDII)A"},
		[]string{"下属分级基金的交易代码", "000041"},
	)
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(page)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != viewPath || r.URL.Query().Get("instanceid") != "abc" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=GBK")
		fmt.Fprint(w, encoded)
	}))
	defer server.Close()

	html, err := testClient(server.URL).Disclosure(context.Background(), "abc")
	require.NoError(t, err)
	d, err := ParseDisclosure(html)
	require.NoError(t, err)

	assert.Equal(t, "华夏基金管理有限公司", d.Company)
	require.Len(t, d.Classes, 1)
	assert.Equal(t, "000041", d.Classes[0].Code)
}

func TestClient_DisclosureNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := testClient(server.URL).Disclosure(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, fetch.StatusCode(err))
}
