package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rickgao/market-etl/internal/database"
	"github.com/rickgao/market-etl/internal/model"
	"github.com/rickgao/market-etl/internal/writer"
)

// Store kinds accepted by -store.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
)

// OpenPostgres connects to PostgreSQL, applies the schema and returns a
// store with a close function for the pool.
func (j *Job) OpenPostgres(ctx context.Context) (*writer.PostgresStore, func(), error) {
	host, port, name := database.Describe(j.Config.Database)
	j.Logger.Info("connecting to database", "host", host, "port", port, "database", name)

	pool, err := database.Connect(ctx, j.Config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	j.Logger.Info("database connected")

	store := writer.NewPostgresStore(writer.WriterConfig{BatchSize: j.Config.Writer.BatchSize}, pool, j.Logger)
	return store, pool.Close, nil
}

// OpenDynamo creates a DynamoDB store for the configured region.
func (j *Job) OpenDynamo() (*writer.DynamoStore, error) {
	client, err := writer.NewDynamoClient(j.Config.AWS)
	if err != nil {
		return nil, err
	}
	j.Logger.Info("using dynamodb", "region", j.Config.AWS.Region, "endpoint", j.Config.AWS.Endpoint)
	return writer.NewDynamoStore(writer.WriterConfig{BatchSize: j.Config.Writer.BatchSize}, client, j.Logger), nil
}

// SelectIndexes resolves an -index argument: "all" or a comma separated
// list of index keys.
func SelectIndexes(arg string) ([]model.Index, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))
	if arg == "" || arg == "all" {
		return model.Indexes(), nil
	}

	var out []model.Index
	for _, key := range strings.Split(arg, ",") {
		idx, ok := model.LookupIndex(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("unknown index %q (want all or one of %s)", key, strings.Join(model.IndexKeys(), ", "))
		}
		out = append(out, idx)
	}
	return out, nil
}
