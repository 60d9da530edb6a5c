package store

import (
	"context"
	"fmt"

	"example.com/healthsync/internal/domain"
)

// Gate inserts a document only when no document with the same natural key exists.
//
// The existence check and the insert are two separate operations. Two gates racing on
// the same key can both see it absent and both insert; runs are scheduled one at a time
// so this is tolerated rather than locked against.
type Gate struct{}

// Insert returns OutcomeInserted when doc was written and OutcomeSkipped when its key
// was already present. Existing documents are never overwritten or merged.
func (Gate) Insert(ctx context.Context, coll Collection, doc domain.Document) (domain.Outcome, error) {
	exists, err := coll.Exists(ctx, doc.Key)
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("%s: lookup %s=%v: %w", coll.Name(), doc.Key.Field, doc.Key.Value, err)
	}
	if exists {
		return domain.OutcomeSkipped, nil
	}
	if err := coll.Insert(ctx, doc); err != nil {
		return domain.OutcomeFailed, fmt.Errorf("%s: insert %s=%v: %w", coll.Name(), doc.Key.Field, doc.Key.Value, err)
	}
	return domain.OutcomeInserted, nil
}
