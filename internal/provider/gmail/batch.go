package gmail

import (
	"context"
	"fmt"

	"github.com/nhle/mailbridge/internal/model"
)

// defaultChunkSize bounds how many identifiers go into one bulk API
// call.
const defaultChunkSize = 50

// runChunks processes ids in fixed-size chunks. For each chunk, bulk
// attempts the whole chunk first; when it fails (or no bulk call
// exists), every item in the chunk is retried individually through
// single and per-item outcomes are recorded. A failing item never
// aborts the remaining items or chunks.
func runChunks(
	ids []string,
	size int,
	bulk func(chunk []string) error,
	single func(id string) error,
) *model.BatchResult {
	if size <= 0 {
		size = defaultChunkSize
	}

	result := &model.BatchResult{}

	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		if bulk != nil {
			if err := bulk(chunk); err == nil {
				result.Succeeded = append(result.Succeeded, chunk...)
				continue
			}
		}

		for _, id := range chunk {
			if err := single(id); err != nil {
				result.Failed = append(result.Failed, model.BatchItemError{
					ID:    truncateID(id),
					Error: err.Error(),
				})
				continue
			}
			result.Succeeded = append(result.Succeeded, id)
		}
	}

	return result
}

// truncateID bounds identifier length in failure reports.
func truncateID(id string) string {
	const max = 40
	if len(id) <= max {
		return id
	}
	return id[:max] + "..."
}

// BatchModifyLabels applies add/remove label changes to many messages
// or threads. Empty add and remove sets make the whole call a no-op
// reported as all-success. Messages use the native batchModify call per
// chunk; threads have no bulk endpoint and go item by item.
func (a *Adapter) BatchModifyLabels(
	ctx context.Context, ids []string, add, remove []string, threads bool,
) (*model.BatchResult, error) {
	if len(add) == 0 && len(remove) == 0 {
		return &model.BatchResult{Succeeded: append([]string(nil), ids...)}, nil
	}

	if threads {
		single := func(id string) error {
			return a.ModifyThreadLabels(ctx, id, add, remove)
		}
		return runChunks(ids, a.chunkSize, nil, single), nil
	}

	bulk := func(chunk []string) error {
		body := batchModifyRequest{
			IDs:            chunk,
			AddLabelIDs:    add,
			RemoveLabelIDs: remove,
		}
		return a.api.Post(ctx, "/messages/batchModify", body, nil)
	}
	single := func(id string) error {
		return a.ModifyMessageLabels(ctx, id, add, remove)
	}

	return runChunks(ids, a.chunkSize, bulk, single), nil
}

// BatchDelete trashes many messages, or permanently deletes them via
// the native batchDelete call when permanent is set. Trashing has no
// bulk endpoint and goes item by item.
func (a *Adapter) BatchDelete(
	ctx context.Context, ids []string, permanent bool,
) (*model.BatchResult, error) {
	if permanent {
		bulk := func(chunk []string) error {
			return a.api.Post(ctx, "/messages/batchDelete", batchDeleteRequest{IDs: chunk}, nil)
		}
		single := func(id string) error {
			if err := a.api.Delete(ctx, "/messages/"+id); err != nil {
				return a.wrapErr(fmt.Errorf("deleting message %s: %w", id, err))
			}
			return nil
		}
		return runChunks(ids, a.chunkSize, bulk, single), nil
	}

	single := func(id string) error {
		if err := a.api.Post(ctx, "/messages/"+id+"/trash", nil, nil); err != nil {
			return a.wrapErr(fmt.Errorf("trashing message %s: %w", id, err))
		}
		return nil
	}
	return runChunks(ids, a.chunkSize, nil, single), nil
}
