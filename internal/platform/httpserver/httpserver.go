package httpserver

import (
	"net/http"
	"time"
)

// New builds the local API server. Write timeout is generous because batch
// submission blocks until every upload and the revert barrier complete.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
}
