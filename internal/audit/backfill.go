package audit

import (
	"context"
	"fmt"
)

// Order log details embed product names at three places: the create/return
// item list and the before/after snapshots of edits.
var itemPaths = []string{"items", "before,items", "after,items"}

// Backfiller rewrites historical product names inside order log details so
// the timeline keeps showing the current catalog name after a rename.
type Backfiller struct {
	db execer
}

func NewBackfiller(db execer) *Backfiller {
	return &Backfiller{db: db}
}

// RenameProduct rewrites product_name for the given product in every order
// log item list and returns the number of rows it touched.
func (b *Backfiller) RenameProduct(ctx context.Context, productID int64, name string) (int64, error) {
	var touched int64
	for _, path := range itemPaths {
		query := fmt.Sprintf(`UPDATE order_logs
SET details = jsonb_set(details, '{%[1]s}', (
        SELECT jsonb_agg(
                CASE WHEN (item->>'product_id')::bigint = $1
                     THEN jsonb_set(item, '{product_name}', to_jsonb($2::text))
                     ELSE item END)
        FROM jsonb_array_elements(details#>'{%[1]s}') AS item))
WHERE details#>'{%[1]s}' @> jsonb_build_array(jsonb_build_object('product_id', $1))`, path)
		tag, err := b.db.Exec(ctx, query, productID, name)
		if err != nil {
			return touched, fmt.Errorf("audit: backfill product name at %s: %w", path, err)
		}
		touched += tag.RowsAffected()
	}
	return touched, nil
}
