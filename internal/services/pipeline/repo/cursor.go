package repo

import (
	"context"
	"time"
)

// defaultPageSize bounds full-table streams when the caller passes zero
const defaultPageSize = 1000

// page is one window of a snapshot-bounded table scan. asOf is fixed at scan
// start so rows created mid-scan never extend it
type page struct {
	limit  int
	offset int
	asOf   time.Time
}

// scanBatches walks a table in fixed-size pages, calling fetch once per page
// until a short page signals the end. fetch returns the number of rows it
// consumed; any error aborts the scan and is returned as-is so row-callback
// errors surface unchanged
func scanBatches(ctx context.Context, pageSize int, fetch func(ctx context.Context, p page) (int, error)) error {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	asOf := time.Now().UTC()
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := fetch(ctx, page{limit: pageSize, offset: offset, asOf: asOf})
		if err != nil {
			return err
		}
		if n < pageSize {
			return nil
		}
	}
}
