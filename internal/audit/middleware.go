package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/croftbay/pgscout/internal/toolreg"
)

// Wrap records every invocation of the handler: arguments, outcome, duration.
// A nil store returns the handler unchanged.
func Wrap(store *Store, toolName string, next toolreg.Handler) toolreg.Handler {
	if store == nil {
		return next
	}
	return func(ctx context.Context, args map[string]any) (string, error) {
		start := time.Now()

		result, err := next(ctx, args)

		entry := &Entry{
			ToolName:   toolName,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if params, e := json.Marshal(args); e == nil {
			entry.Arguments = string(params)
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.ResultBytes = len(result)
		}

		store.Record(entry)
		return result, err
	}
}
