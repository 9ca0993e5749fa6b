package writer

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/rickgao/market-etl/internal/model"
)

// Items are marshalled from the model json tags. Nil pointers and empty
// strings are omitted, so GSI keys never hold an empty value.

type item = map[string]*dynamodb.AttributeValue

func marshalItem[T any](v T) (item, error) {
	av, err := dynamodbattribute.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return av, nil
}

func timestamp(t time.Time) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{S: aws.String(t.UTC().Format(time.RFC3339))}
}

func etfItem(e model.ETF, at time.Time) (item, error) {
	av, err := marshalItem(e)
	if err != nil {
		return nil, err
	}
	av["lastUpdated"] = timestamp(at)
	return av, nil
}

func delistedFrom(e model.ETF, at time.Time) model.DelistedETF {
	return model.DelistedETF{
		Ticker:       e.Ticker,
		ETFLeverage:  e.ETFLeverage,
		Issuer:       e.Issuer,
		AUM:          e.AUM,
		AssetClass:   e.AssetClass,
		ExpenseRatio: e.ExpenseRatio,
		ETFIndex:     e.ETFIndex,
		DelistedDate: at.UTC(),
	}
}

func delistedItem(d model.DelistedETF) (item, error) {
	av, err := marshalItem(d)
	if err != nil {
		return nil, err
	}
	av["delistedDate"] = timestamp(d.DelistedDate)
	return av, nil
}

// gainerLoserItem keys an entry by "period#rankType" and rank.
func gainerLoserItem(g model.GainerLoser) (item, error) {
	av, err := marshalItem(g)
	if err != nil {
		return nil, err
	}
	av["periodRankType"] = &dynamodb.AttributeValue{S: aws.String(g.Period + "#" + g.RankType)}
	return av, nil
}

func constituentItem(indexKey string, c model.Constituent, at time.Time) (item, error) {
	av, err := marshalItem(c)
	if err != nil {
		return nil, err
	}
	av["index"] = &dynamodb.AttributeValue{S: aws.String(indexKey)}
	av["lastUpdated"] = timestamp(at)
	return av, nil
}

func putRequests[T any](rows []T, build func(T) (item, error)) ([]*dynamodb.WriteRequest, error) {
	reqs := make([]*dynamodb.WriteRequest, 0, len(rows))
	for _, r := range rows {
		av, err := build(r)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, &dynamodb.WriteRequest{PutRequest: &dynamodb.PutRequest{Item: av}})
	}
	return reqs, nil
}

func deleteRequest(key item) *dynamodb.WriteRequest {
	return &dynamodb.WriteRequest{DeleteRequest: &dynamodb.DeleteRequest{Key: key}}
}
