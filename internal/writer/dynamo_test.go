package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/rickgao/market-etl/internal/model"
)

// fakeDynamo keeps items in memory, keyed by table then primary key.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu          sync.Mutex
	tables      map[string]map[string]item
	batchCalls  int
	unprocessed int             // items left unprocessed on the next batch call
	failBatch   bool            // every BatchWriteItem call fails
	failPut     map[string]bool // tickers whose PutItem fails
	created     []string
	waited      []string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]item)}
}

func keyOf(table string, av item) string {
	parts := make([]string, 0, 2)
	for _, k := range tableSpecs[table].keyNames() {
		v := av[k]
		switch {
		case v == nil:
			parts = append(parts, "")
		case v.S != nil:
			parts = append(parts, *v.S)
		case v.N != nil:
			parts = append(parts, *v.N)
		}
	}
	return strings.Join(parts, "|")
}

func (f *fakeDynamo) put(table string, av item) {
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]item)
	}
	f.tables[table][keyOf(table, av)] = av
}

func (f *fakeDynamo) BatchWriteItemWithContext(_ aws.Context, in *dynamodb.BatchWriteItemInput, _ ...request.Option) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.failBatch {
		return nil, errors.New("throughput exceeded")
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]*dynamodb.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > dynamoBatchLimit {
			return nil, fmt.Errorf("too many items: %d", len(reqs))
		}
		n := len(reqs) - f.unprocessed
		if n < 0 {
			n = 0
		}
		for _, r := range reqs[:n] {
			if r.PutRequest != nil {
				f.put(table, r.PutRequest.Item)
			} else {
				delete(f.tables[table], keyOf(table, r.DeleteRequest.Key))
			}
		}
		if n < len(reqs) {
			out.UnprocessedItems[table] = reqs[n:]
		}
		f.unprocessed = 0
	}
	return out, nil
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t := in.Item["ticker"]; t != nil && f.failPut[*t.S] {
		return nil, errors.New("validation error")
	}
	f.put(*in.TableName, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables[*in.TableName], keyOf(*in.TableName, in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.tables[*in.TableName][keyOf(*in.TableName, in.Key)]}, nil
}

func (f *fakeDynamo) ScanPagesWithContext(_ aws.Context, in *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	items := make([]item, 0, len(f.tables[*in.TableName]))
	for _, av := range f.tables[*in.TableName] {
		key := make(item)
		for _, name := range in.ExpressionAttributeNames {
			key[*name] = av[*name]
		}
		items = append(items, key)
	}
	f.mu.Unlock()

	fn(&dynamodb.ScanOutput{Items: items}, true)
	return nil
}

func (f *fakeDynamo) QueryPagesWithContext(_ aws.Context, in *dynamodb.QueryInput, fn func(*dynamodb.QueryOutput, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	want := *in.ExpressionAttributeValues[":leverage"].S
	var items []item
	for _, av := range f.tables[*in.TableName] {
		if v := av["etfLeverage"]; v != nil && v.S != nil && *v.S == want {
			items = append(items, av)
		}
	}
	f.mu.Unlock()

	fn(&dynamodb.QueryOutput{Items: items}, true)
	return nil
}

func (f *fakeDynamo) CreateTableWithContext(_ aws.Context, in *dynamodb.CreateTableInput, _ ...request.Option) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[*in.TableName]; ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceInUseException, "table exists", nil)
	}
	f.tables[*in.TableName] = make(map[string]item)
	f.created = append(f.created, *in.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) WaitUntilTableExistsWithContext(_ aws.Context, in *dynamodb.DescribeTableInput, _ ...request.WaiterOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, *in.TableName)
	return nil
}

func newTestDynamoStore(db *fakeDynamo) *DynamoStore {
	s := NewDynamoStore(DefaultWriterConfig(), db, nil)
	s.retryInterval = time.Millisecond
	return s
}

func testETFs(n int) []model.ETF {
	out := make([]model.ETF, n)
	for i := range out {
		aum := float64(i+1) * 1e9
		out[i] = model.ETF{Ticker: fmt.Sprintf("E%02d", i), Issuer: "iShares", ETFLeverage: "Long", AUM: &aum}
	}
	return out
}

func TestDynamoStore_UpsertETFs(t *testing.T) {
	db := newFakeDynamo()
	s := newTestDynamoStore(db)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.UpsertETFs(context.Background(), testETFs(30), at)
	if err != nil {
		t.Fatalf("UpsertETFs() error = %v", err)
	}
	if n != 30 {
		t.Errorf("written = %d, want 30", n)
	}
	if db.batchCalls != 2 {
		t.Errorf("batch calls = %d, want 2", db.batchCalls)
	}

	got := db.tables[TableETFData]["E01"]
	if got == nil {
		t.Fatal("E01 not stored")
	}
	if *got["aum"].N != "2000000000" {
		t.Errorf("aum = %s, want 2000000000", *got["aum"].N)
	}
	if *got["lastUpdated"].S != "2025-06-01T12:00:00Z" {
		t.Errorf("lastUpdated = %s", *got["lastUpdated"].S)
	}
	if _, ok := got["expenseRatio"]; ok {
		t.Error("nil expenseRatio should be omitted")
	}

	stats := s.Stats()
	if stats.Inserts != 30 || stats.Batches != 2 {
		t.Errorf("stats = %+v, want 30 inserts in 2 batches", stats)
	}
}

func TestDynamoStore_RetriesUnprocessed(t *testing.T) {
	db := newFakeDynamo()
	db.unprocessed = 3
	s := newTestDynamoStore(db)

	n, err := s.UpsertETFs(context.Background(), testETFs(10), time.Now())
	if err != nil {
		t.Fatalf("UpsertETFs() error = %v", err)
	}
	if n != 10 || len(db.tables[TableETFData]) != 10 {
		t.Errorf("written = %d, stored = %d, want 10", n, len(db.tables[TableETFData]))
	}
	if db.batchCalls != 2 {
		t.Errorf("batch calls = %d, want 2", db.batchCalls)
	}
}

func TestDynamoStore_FallsBackToPutItem(t *testing.T) {
	db := newFakeDynamo()
	db.failBatch = true
	db.failPut = map[string]bool{"E01": true}
	s := newTestDynamoStore(db)

	n, err := s.UpsertETFs(context.Background(), testETFs(3), time.Now())
	if err == nil || !strings.Contains(err.Error(), "1 of 3 items failed") {
		t.Errorf("UpsertETFs() error = %v, want 1 of 3 items failed", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if _, ok := db.tables[TableETFData]["E01"]; ok {
		t.Error("E01 should not be stored")
	}
	if got := s.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
}

func TestDynamoStore_ArchiveDelisted(t *testing.T) {
	db := newFakeDynamo()
	s := newTestDynamoStore(db)
	ctx := context.Background()

	if _, err := s.UpsertETFs(ctx, testETFs(2), time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	n, err := s.ArchiveDelisted(ctx, []string{"E00", "GONE"}, at)
	if err != nil {
		t.Fatalf("ArchiveDelisted() error = %v", err)
	}
	if n != 1 {
		t.Errorf("archived = %d, want 1", n)
	}

	if _, ok := db.tables[TableETFData]["E00"]; ok {
		t.Error("E00 still in ETFData")
	}
	if _, ok := db.tables[TableETFData]["E01"]; !ok {
		t.Error("E01 removed from ETFData")
	}

	got := db.tables[TableDelisted]["E00|2025-06-02T00:00:00Z"]
	if got == nil {
		t.Fatalf("delisted item missing, have %v", db.tables[TableDelisted])
	}
	if *got["issuer"].S != "iShares" || *got["aum"].N != "1000000000" {
		t.Errorf("delisted item = %v", got)
	}

	tickers, err := s.ExistingTickers(ctx)
	if err != nil || len(tickers) != 1 || tickers[0] != "E01" {
		t.Errorf("ExistingTickers() = %v, %v, want [E01]", tickers, err)
	}
}

func TestDynamoStore_ReplaceGainersLosers(t *testing.T) {
	db := newFakeDynamo()
	s := newTestDynamoStore(db)
	ctx := context.Background()

	old := []model.GainerLoser{
		{Period: "ch1y", RankType: model.RankGainer, Rank: 1, Ticker: "OLD"},
		{Period: "ch1y", RankType: model.RankGainer, Rank: 2, Ticker: "OLDER"},
	}
	if err := s.ReplaceGainersLosers(ctx, old); err != nil {
		t.Fatalf("ReplaceGainersLosers() error = %v", err)
	}

	fresh := []model.GainerLoser{
		{Period: "ch1w", RankType: model.RankLoser, Rank: 1, Ticker: "SQQQ", ReturnValue: -12.5},
	}
	if err := s.ReplaceGainersLosers(ctx, fresh); err != nil {
		t.Fatalf("ReplaceGainersLosers() error = %v", err)
	}

	items := db.tables[TableGainersLosers]
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	got := items["ch1w#loser|1"]
	if got == nil || *got["ticker"].S != "SQQQ" || *got["returnValue"].N != "-12.5" {
		t.Errorf("item = %v, want SQQQ -12.5", got)
	}
	if got := s.Stats().Deletes; got != 2 {
		t.Errorf("Deletes = %d, want 2", got)
	}
}

func TestDynamoStore_UpsertConstituents(t *testing.T) {
	db := newFakeDynamo()
	s := newTestDynamoStore(db)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	ath := 260.1
	rows := []model.Constituent{{No: 1, Symbol: "AAPL", Name: "Apple Inc.", ATHPrice: &ath}}
	n, err := s.UpsertConstituents(context.Background(), "dow", rows)
	if err != nil || n != 1 {
		t.Fatalf("UpsertConstituents() = %d, %v", n, err)
	}

	got := db.tables[TableConstituents]["dow|AAPL"]
	if got == nil {
		t.Fatal("constituent not stored under dow|AAPL")
	}
	if *got["ath_price"].N != "260.1" || *got["lastUpdated"].S != "2025-01-01T00:00:00Z" {
		t.Errorf("item = %v", got)
	}
}

func TestDynamoStore_QueryByLeverage(t *testing.T) {
	db := newFakeDynamo()
	s := newTestDynamoStore(db)
	ctx := context.Background()

	etfs := testETFs(3)
	etfs[2].ETFLeverage = "2X Long"
	if _, err := s.UpsertETFs(ctx, etfs, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.QueryByLeverage(ctx, "2X Long")
	if err != nil {
		t.Fatalf("QueryByLeverage() error = %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "E02" {
		t.Errorf("QueryByLeverage() = %+v, want [E02]", got)
	}
	if got[0].AUM == nil || *got[0].AUM != 3e9 {
		t.Errorf("AUM = %v, want 3e9", got[0].AUM)
	}
}

func TestDynamoStore_EnsureTables(t *testing.T) {
	db := newFakeDynamo()
	db.tables[TableETFData] = make(map[string]item)
	s := newTestDynamoStore(db)

	if err := s.EnsureTables(context.Background()); err != nil {
		t.Fatalf("EnsureTables() error = %v", err)
	}
	if len(db.created) != len(tableOrder)-1 {
		t.Errorf("created = %v, want every table but ETFData", db.created)
	}
	if len(db.waited) != len(tableOrder) {
		t.Errorf("waited = %v, want all %d tables", db.waited, len(tableOrder))
	}
}

func TestCreateTableInput(t *testing.T) {
	etf := createTableInput(tableSpecs[TableETFData])
	if *etf.BillingMode != dynamodb.BillingModeProvisioned {
		t.Errorf("ETFData billing = %s, want provisioned", *etf.BillingMode)
	}
	if len(etf.GlobalSecondaryIndexes) != 1 || *etf.GlobalSecondaryIndexes[0].IndexName != LeverageIndex {
		t.Errorf("ETFData GSI = %v", etf.GlobalSecondaryIndexes)
	}
	if len(etf.AttributeDefinitions) != 2 {
		t.Errorf("ETFData attributes = %d, want 2", len(etf.AttributeDefinitions))
	}

	gl := createTableInput(tableSpecs[TableGainersLosers])
	if *gl.BillingMode != dynamodb.BillingModePayPerRequest {
		t.Errorf("ETFGainersLosers billing = %s, want on-demand", *gl.BillingMode)
	}
	if len(gl.KeySchema) != 2 || *gl.KeySchema[1].AttributeName != "rank" || *gl.AttributeDefinitions[1].AttributeType != "N" {
		t.Errorf("ETFGainersLosers key schema = %v", gl.KeySchema)
	}
	if gl.GlobalSecondaryIndexes != nil {
		t.Error("ETFGainersLosers should have no GSI")
	}
}
