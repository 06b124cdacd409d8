package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/angelmondragon/carestaff-backend/api/responses"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

// panicError converts a recovered value into an error, keeping error values
// in the chain.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("handler panic: %w", err)
	}
	return fmt.Errorf("handler panic: %v", v)
}

// Recoverer answers a panicking handler with a 500 unless it already started
// writing. http.ErrAbortHandler propagates so net/http drops the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				err := panicError(v)
				if errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"method":    r.Method,
						"path":      r.URL.Path,
						"committed": rec.status != 0,
						"stack":     string(debug.Stack()),
					})
					logg.Error(ctx, "panic recovered", err)
				}
				if rec.status == 0 {
					responses.WriteError(ctx, logg, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(rec, r)
		}
		return http.HandlerFunc(fn)
	}
}
