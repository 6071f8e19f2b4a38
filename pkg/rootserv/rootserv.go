// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package rootserv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"roastctl/pkg/logger"
)

// RootServer holds a mux and the list of attached sub-handlers.
type RootServer struct {
	log        *logger.Logger
	addr       string
	mux        *http.ServeMux
	subservers map[string]string // path -> description
}

// New creates a new RootServer bound to an address.
func New(addr string) *RootServer {
	rs := &RootServer{
		addr:       addr,
		mux:        http.NewServeMux(),
		subservers: make(map[string]string),
		log:        logger.New("HTTPServer"),
	}
	rs.mux.HandleFunc("/", rs.handleIndex)
	return rs
}

// Attach registers handler under path. The handler sees URLs with the
// prefix stripped.
func (rs *RootServer) Attach(path, desc string, handler http.Handler) {
	rs.log.Info("Attach: %s", path)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	rs.subservers[path] = desc

	rs.mux.Handle(path, http.StripPrefix(path, handler))
	rs.mux.Handle(path+"/", http.StripPrefix(path, handler))
}

func (rs *RootServer) Handler() http.Handler {
	return rs.mux
}

// handleIndex lists the attached sub-servers as plain text.
func (rs *RootServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	paths := make([]string, 0, len(rs.subservers))
	for path := range rs.subservers {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(w, "%s - %s\n", path, rs.subservers[path])
	}
}

// Run serves until ctx is cancelled. A listen failure is returned.
func (rs *RootServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", rs.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", rs.addr, err)
	}
	return rs.Serve(ctx, ln)
}

func (rs *RootServer) Serve(ctx context.Context, ln net.Listener) error {
	rs.log.Info("Listening on %s", ln.Addr())
	srv := &http.Server{
		Handler:           rs.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		rs.log.Info("Stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			rs.log.Error("Stopped: %v", err)
		}
		return err
	}
}
