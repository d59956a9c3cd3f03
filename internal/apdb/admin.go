package apdb

import (
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts live-SQL debugging for the association store
// on the given mux under /debug/. Debug-only; callers must not expose
// this without auth.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://apdb.db", db.DB, &tailsql.DBOptions{
		Label: "Association DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
