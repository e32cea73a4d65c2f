//go:build debug
// +build debug

package server

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
)

// recoverMiddleware logs a panic and its stack trace, and also echoes both
// to the client response body. Built only with -tags debug, mirroring the
// teacher's runtime/middleware_debug.go.
func recoverMiddleware(logger *log.Logger, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				logger.Printf("panic handling %s %s: %v\n%s", r.Method, r.URL.Path, rec, stack)
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "internal error: %v\n%s", rec, stack)
			}
		}()
		handler.ServeHTTP(w, r)
	})
}
