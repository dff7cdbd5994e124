// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/minichain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
	"github.com/ardanlabs/minichain/foundation/blockchain/worker"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/ardanlabs/minichain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log      *zap.SugaredLogger
	Chain    *database.Chain
	Worker   *worker.Worker
	Registry *validator.Registry
	Evts     *events.Events[string]
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		Chain:    cfg.Chain,
		Worker:   cfg.Worker,
		Registry: cfg.Registry,
		WS:       websocket.Upgrader{},
		Evts:     cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/:index", pbl.BlockByIndex)
	app.Handle(http.MethodPost, version, "/blocks", pbl.AppendBlock)
	app.Handle(http.MethodPost, version, "/blocks/queue", pbl.QueueBlock)
	app.Handle(http.MethodGet, version, "/tickets/:id", pbl.Ticket)
	app.Handle(http.MethodGet, version, "/validate", pbl.Validate)
	app.Handle(http.MethodPost, version, "/verify", pbl.Verify)
	app.Handle(http.MethodGet, version, "/validators", pbl.Validators)
	app.Handle(http.MethodGet, version, "/validators/sample", pbl.Sample)
	app.Handle(http.MethodGet, version, "/merkle", pbl.MerkleRoot)
	app.Handle(http.MethodGet, version, "/merkle/:index", pbl.MerkleProof)
}
