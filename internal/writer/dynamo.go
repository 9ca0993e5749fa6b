package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/rickgao/market-etl/internal/config"
	"github.com/rickgao/market-etl/internal/model"
)

// DynamoDB table and index names.
const (
	TableETFData         = "ETFData"
	TableMarketStats     = "ETFMarketStats"
	TableDelisted        = "DelistedETFs"
	TableNewLaunches     = "NewLaunchETFs"
	TableGainersLosers   = "ETFGainersLosers"
	TableConstituents    = "index-constituents"
	LeverageIndex        = "etfLeverage-index"
	dynamoBatchLimit     = 25
	unprocessedRetries   = 5
	defaultRetryInterval = 200 * time.Millisecond
)

// tableSpec describes the key schema of one table.
type tableSpec struct {
	name     string
	hashKey  string
	hashType string
	rangeKey string
	rangeTyp string
}

// tableOrder fixes the order tables are created in.
var tableOrder = []string{
	TableETFData, TableMarketStats, TableDelisted, TableNewLaunches, TableGainersLosers, TableConstituents,
}

var tableSpecs = map[string]tableSpec{
	TableETFData:       {name: TableETFData, hashKey: "ticker", hashType: dynamodb.ScalarAttributeTypeS},
	TableMarketStats:   {name: TableMarketStats, hashKey: "statKey", hashType: dynamodb.ScalarAttributeTypeS},
	TableDelisted:      {name: TableDelisted, hashKey: "ticker", hashType: dynamodb.ScalarAttributeTypeS, rangeKey: "delistedDate", rangeTyp: dynamodb.ScalarAttributeTypeS},
	TableNewLaunches:   {name: TableNewLaunches, hashKey: "ticker", hashType: dynamodb.ScalarAttributeTypeS},
	TableGainersLosers: {name: TableGainersLosers, hashKey: "periodRankType", hashType: dynamodb.ScalarAttributeTypeS, rangeKey: "rank", rangeTyp: dynamodb.ScalarAttributeTypeN},
	TableConstituents:  {name: TableConstituents, hashKey: "index", hashType: dynamodb.ScalarAttributeTypeS, rangeKey: "symbol", rangeTyp: dynamodb.ScalarAttributeTypeS},
}

// keyNames returns the key attributes of a table.
func (t tableSpec) keyNames() []string {
	if t.rangeKey == "" {
		return []string{t.hashKey}
	}
	return []string{t.hashKey, t.rangeKey}
}

// NewDynamoClient creates a DynamoDB client for the configured region and
// optional endpoint override.
func NewDynamoClient(cfg config.AWSConfig) (*dynamodb.DynamoDB, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return dynamodb.New(sess), nil
}

// DynamoStore writes ETF and constituent items to DynamoDB.
type DynamoStore struct {
	metricsRecorder

	cfg           WriterConfig
	db            dynamodbiface.DynamoDBAPI
	logger        *slog.Logger
	now           func() time.Time
	retryInterval time.Duration
}

// NewDynamoStore creates a new DynamoStore. BatchSize is capped at the
// BatchWriteItem limit of 25.
func NewDynamoStore(cfg WriterConfig, db dynamodbiface.DynamoDBAPI, logger *slog.Logger) *DynamoStore {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	cfg.BatchSize = min(cfg.BatchSize, dynamoBatchLimit)
	return &DynamoStore{
		cfg:           cfg,
		db:            db,
		logger:        logger,
		now:           time.Now,
		retryInterval: defaultRetryInterval,
	}
}

// EnsureTables creates any missing table and waits until each one exists.
// ETFData gets provisioned throughput and the etfLeverage GSI; the others
// are on-demand.
func (s *DynamoStore) EnsureTables(ctx context.Context) error {
	for _, name := range tableOrder {
		if err := s.ensureTable(ctx, tableSpecs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStore) ensureTable(ctx context.Context, spec tableSpec) error {
	_, err := s.db.CreateTableWithContext(ctx, createTableInput(spec))
	var aerr awserr.Error
	switch {
	case err == nil:
		s.logger.Info("creating table", "table", spec.name)
	case errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeResourceInUseException:
		s.logger.Debug("table already exists", "table", spec.name)
	default:
		return fmt.Errorf("create table %s: %w", spec.name, err)
	}

	if err := s.db.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(spec.name),
	}); err != nil {
		return fmt.Errorf("wait for table %s: %w", spec.name, err)
	}
	return nil
}

func createTableInput(spec tableSpec) *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(spec.name),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(spec.hashKey), AttributeType: aws.String(spec.hashType)},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(spec.hashKey), KeyType: aws.String(dynamodb.KeyTypeHash)},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}
	if spec.rangeKey != "" {
		in.AttributeDefinitions = append(in.AttributeDefinitions, &dynamodb.AttributeDefinition{
			AttributeName: aws.String(spec.rangeKey), AttributeType: aws.String(spec.rangeTyp),
		})
		in.KeySchema = append(in.KeySchema, &dynamodb.KeySchemaElement{
			AttributeName: aws.String(spec.rangeKey), KeyType: aws.String(dynamodb.KeyTypeRange),
		})
	}

	if spec.name != TableETFData {
		return in
	}

	throughput := &dynamodb.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(5),
		WriteCapacityUnits: aws.Int64(5),
	}
	in.BillingMode = aws.String(dynamodb.BillingModeProvisioned)
	in.ProvisionedThroughput = throughput
	in.AttributeDefinitions = append(in.AttributeDefinitions, &dynamodb.AttributeDefinition{
		AttributeName: aws.String("etfLeverage"), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
	})
	in.GlobalSecondaryIndexes = []*dynamodb.GlobalSecondaryIndex{{
		IndexName: aws.String(LeverageIndex),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("etfLeverage"), KeyType: aws.String(dynamodb.KeyTypeHash)},
		},
		Projection:            &dynamodb.Projection{ProjectionType: aws.String(dynamodb.ProjectionTypeAll)},
		ProvisionedThroughput: throughput,
	}}
	return in
}

// ExistingTickers scans the ticker keys of ETFData.
func (s *DynamoStore) ExistingTickers(ctx context.Context) ([]string, error) {
	keys, err := s.scanKeys(ctx, tableSpecs[TableETFData])
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(keys, func(k map[string]*dynamodb.AttributeValue, _ int) (string, bool) {
		v, ok := k["ticker"]
		if !ok || v.S == nil {
			return "", false
		}
		return *v.S, true
	}), nil
}

// ArchiveDelisted copies the stored items of tickers into DelistedETFs and
// deletes them from ETFData.
func (s *DynamoStore) ArchiveDelisted(ctx context.Context, tickers []string, at time.Time) (int, error) {
	var archived []model.DelistedETF
	for _, t := range tickers {
		out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(TableETFData),
			Key:       map[string]*dynamodb.AttributeValue{"ticker": {S: aws.String(t)}},
		})
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", t, err)
		}
		if len(out.Item) == 0 {
			continue
		}
		var e model.ETF
		if err := dynamodbattribute.UnmarshalMap(out.Item, &e); err != nil {
			return 0, fmt.Errorf("decode %s: %w", t, err)
		}
		archived = append(archived, delistedFrom(e, at))
	}

	puts, err := putRequests(archived, delistedItem)
	if err != nil {
		return 0, err
	}
	n, err := s.batchWrite(ctx, TableDelisted, puts)
	if err != nil {
		return n, err
	}

	deletes := lo.Map(archived, func(d model.DelistedETF, _ int) *dynamodb.WriteRequest {
		return deleteRequest(map[string]*dynamodb.AttributeValue{"ticker": {S: aws.String(d.Ticker)}})
	})
	if _, err := s.batchWrite(ctx, TableETFData, deletes); err != nil {
		return n, err
	}
	return n, nil
}

// UpsertETFs puts ETFData items, stamping lastUpdated.
func (s *DynamoStore) UpsertETFs(ctx context.Context, etfs []model.ETF, at time.Time) (int, error) {
	puts, err := putRequests(etfs, func(e model.ETF) (map[string]*dynamodb.AttributeValue, error) {
		return etfItem(e, at)
	})
	if err != nil {
		return 0, err
	}
	return s.batchWrite(ctx, TableETFData, puts)
}

// ReplaceMarketStats swaps the contents of ETFMarketStats.
func (s *DynamoStore) ReplaceMarketStats(ctx context.Context, rows []model.StatRow) error {
	puts, err := putRequests(rows, marshalItem[model.StatRow])
	if err != nil {
		return err
	}
	return s.replace(ctx, tableSpecs[TableMarketStats], puts)
}

// ReplaceNewLaunches swaps the contents of NewLaunchETFs.
func (s *DynamoStore) ReplaceNewLaunches(ctx context.Context, rows []model.NewLaunchETF) error {
	puts, err := putRequests(rows, marshalItem[model.NewLaunchETF])
	if err != nil {
		return err
	}
	return s.replace(ctx, tableSpecs[TableNewLaunches], puts)
}

// ReplaceGainersLosers swaps the contents of ETFGainersLosers.
func (s *DynamoStore) ReplaceGainersLosers(ctx context.Context, rows []model.GainerLoser) error {
	puts, err := putRequests(rows, gainerLoserItem)
	if err != nil {
		return err
	}
	return s.replace(ctx, tableSpecs[TableGainersLosers], puts)
}

// UpsertConstituents puts the constituents of one index.
func (s *DynamoStore) UpsertConstituents(ctx context.Context, indexKey string, rows []model.Constituent) (int, error) {
	at := s.now()
	puts, err := putRequests(rows, func(c model.Constituent) (map[string]*dynamodb.AttributeValue, error) {
		return constituentItem(indexKey, c, at)
	})
	if err != nil {
		return 0, err
	}
	return s.batchWrite(ctx, TableConstituents, puts)
}

// QueryByLeverage returns the ETFData items with the given leverage type
// via the etfLeverage GSI.
func (s *DynamoStore) QueryByLeverage(ctx context.Context, leverage string) ([]model.ETF, error) {
	var etfs []model.ETF
	var decodeErr error
	err := s.db.QueryPagesWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(TableETFData),
		IndexName:                 aws.String(LeverageIndex),
		KeyConditionExpression:    aws.String("etfLeverage = :leverage"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":leverage": {S: aws.String(leverage)}},
	}, func(page *dynamodb.QueryOutput, _ bool) bool {
		var items []model.ETF
		if decodeErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &items); decodeErr != nil {
			return false
		}
		etfs = append(etfs, items...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("query leverage %q: %w", leverage, err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode leverage %q: %w", leverage, decodeErr)
	}
	return etfs, nil
}

// replace deletes every item of a table and puts the new ones.
func (s *DynamoStore) replace(ctx context.Context, spec tableSpec, puts []*dynamodb.WriteRequest) error {
	keys, err := s.scanKeys(ctx, spec)
	if err != nil {
		return err
	}
	deletes := lo.Map(keys, func(k map[string]*dynamodb.AttributeValue, _ int) *dynamodb.WriteRequest {
		return deleteRequest(k)
	})
	deleted, err := s.batchWrite(ctx, spec.name, deletes)
	s.record(func(m *WriterMetrics) { m.Deletes += int64(deleted) })
	if err != nil {
		return fmt.Errorf("replace %s: %w", spec.name, err)
	}
	if _, err := s.batchWrite(ctx, spec.name, puts); err != nil {
		return fmt.Errorf("replace %s: %w", spec.name, err)
	}
	return nil
}

// scanKeys returns the primary key of every item in a table.
func (s *DynamoStore) scanKeys(ctx context.Context, spec tableSpec) ([]map[string]*dynamodb.AttributeValue, error) {
	names := make(map[string]*string)
	projection := ""
	for i, k := range spec.keyNames() {
		alias := fmt.Sprintf("#k%d", i)
		names[alias] = aws.String(k)
		if projection != "" {
			projection += ", "
		}
		projection += alias
	}

	var keys []map[string]*dynamodb.AttributeValue
	err := s.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(spec.name),
		ProjectionExpression:     aws.String(projection),
		ExpressionAttributeNames: names,
	}, func(page *dynamodb.ScanOutput, _ bool) bool {
		keys = append(keys, page.Items...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", spec.name, err)
	}
	return keys, nil
}

// batchWrite sends reqs in chunks of BatchSize. Unprocessed items are
// retried with backoff; a chunk that still fails falls back to one request
// per item. Items that fail individually are counted and reported.
func (s *DynamoStore) batchWrite(ctx context.Context, table string, reqs []*dynamodb.WriteRequest) (int, error) {
	chunks := lo.Chunk(reqs, s.cfg.BatchSize)
	written, failed := 0, 0

	for i, chunk := range chunks {
		err := s.writeChunk(ctx, table, chunk)
		if err == nil {
			written += len(chunk)
			s.record(func(m *WriterMetrics) {
				m.Batches++
				m.Inserts += int64(countPuts(chunk))
			})
			continue
		}
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		s.logger.Warn("batch failed, retrying items individually",
			"table", table,
			"batch", i+1,
			"batches", len(chunks),
			"error", err,
		)
		for _, req := range chunk {
			if err := s.writeOne(ctx, table, req); err != nil {
				failed++
				s.record(func(m *WriterMetrics) { m.Errors++ })
				s.logger.Error("item write failed", "table", table, "error", err)
				continue
			}
			written++
			if req.PutRequest != nil {
				s.record(func(m *WriterMetrics) { m.Inserts++ })
			}
		}
	}

	if failed > 0 {
		return written, fmt.Errorf("write %s: %d of %d items failed", table, failed, len(reqs))
	}
	return written, nil
}

func (s *DynamoStore) writeChunk(ctx context.Context, table string, chunk []*dynamodb.WriteRequest) error {
	pending := map[string][]*dynamodb.WriteRequest{table: chunk}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	op := func() error {
		out, err := s.db.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		if left := out.UnprocessedItems[table]; len(left) > 0 {
			pending = map[string][]*dynamodb.WriteRequest{table: left}
			return fmt.Errorf("%d unprocessed items", len(left))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, unprocessedRetries), ctx))
}

func (s *DynamoStore) writeOne(ctx context.Context, table string, req *dynamodb.WriteRequest) error {
	if req.PutRequest != nil {
		_, err := s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(table),
			Item:      req.PutRequest.Item,
		})
		return err
	}
	_, err := s.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       req.DeleteRequest.Key,
	})
	return err
}

func countPuts(reqs []*dynamodb.WriteRequest) int {
	return lo.CountBy(reqs, func(r *dynamodb.WriteRequest) bool {
		return r.PutRequest != nil
	})
}
