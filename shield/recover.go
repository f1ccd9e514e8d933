package shield

import (
	"net/http"
	"runtime/debug"
)

// Recover turns a handler panic into a JSON 500 and logs the stack with the
// request's logger.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			GetLogger(r.Context()).Error("panic recovered", "panic", rv, "stack", string(debug.Stack()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"ocurrió un error inesperado","kind":"internal"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
