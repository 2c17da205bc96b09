package salesforce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLeadUpdates(n int) []LeadUpdate {
	updates := make([]LeadUpdate, n)
	for i := range updates {
		updates[i] = LeadUpdate{
			ID:     fmt.Sprintf("00Q%04d", i),
			Fields: map[string]any{"Rating": "Warm"},
		}
	}
	return updates
}

func TestBulkUpdateLeads(t *testing.T) {
	t.Run("empty updates returns nil", func(t *testing.T) {
		mock := &mockClient{}
		results, err := BulkUpdateLeads(context.Background(), mock, nil)
		require.NoError(t, err)
		assert.Nil(t, results)
	})

	t.Run("single batch under 200", func(t *testing.T) {
		var callCount int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, sObject string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				assert.Equal(t, "Lead", sObject)
				results := make([]CollectionResult, len(records))
				for i, r := range records {
					results[i] = CollectionResult{ID: r.ID, Success: true}
				}
				return results, nil
			},
		}

		results, err := BulkUpdateLeads(context.Background(), mock, makeLeadUpdates(50))
		require.NoError(t, err)
		assert.Len(t, results, 50)
		assert.Equal(t, 1, callCount)
	})

	t.Run("exact 200 is single batch", func(t *testing.T) {
		var callCount int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				assert.Len(t, records, 200)
				results := make([]CollectionResult, len(records))
				for i, r := range records {
					results[i] = CollectionResult{ID: r.ID, Success: true}
				}
				return results, nil
			},
		}

		results, err := BulkUpdateLeads(context.Background(), mock, makeLeadUpdates(200))
		require.NoError(t, err)
		assert.Len(t, results, 200)
		assert.Equal(t, 1, callCount)
	})

	t.Run("201 splits into two batches", func(t *testing.T) {
		var batchSizes []int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				batchSizes = append(batchSizes, len(records))
				results := make([]CollectionResult, len(records))
				for i, r := range records {
					results[i] = CollectionResult{ID: r.ID, Success: true}
				}
				return results, nil
			},
		}

		results, err := BulkUpdateLeads(context.Background(), mock, makeLeadUpdates(201))
		require.NoError(t, err)
		assert.Len(t, results, 201)
		assert.Equal(t, []int{200, 1}, batchSizes)
	})

	t.Run("fields passed through", func(t *testing.T) {
		var captured []CollectionRecord
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				captured = records
				return nil, nil
			},
		}

		updates := []LeadUpdate{{
			ID:     "00Qxx",
			Fields: map[string]any{"Rating": "Hot", "Status": "Working"},
		}}
		_, err := BulkUpdateLeads(context.Background(), mock, updates)
		require.NoError(t, err)
		require.Len(t, captured, 1)
		assert.Equal(t, "00Qxx", captured[0].ID)
		assert.Equal(t, "Hot", captured[0].Fields["Rating"])
	})

	t.Run("batch error aborts with partial results", func(t *testing.T) {
		var callCount int
		mock := &mockClient{
			updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
				callCount++
				if callCount == 2 {
					return nil, errors.New("api limit")
				}
				results := make([]CollectionResult, len(records))
				for i, r := range records {
					results[i] = CollectionResult{ID: r.ID, Success: true}
				}
				return results, nil
			},
		}

		results, err := BulkUpdateLeads(context.Background(), mock, makeLeadUpdates(250))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bulk update leads batch 200-250")
		assert.Len(t, results, 200)
	})
}

func TestMaxBatchSizeConstant(t *testing.T) {
	assert.Equal(t, 200, maxBatchSize)
}
