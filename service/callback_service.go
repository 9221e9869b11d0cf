// Package service exposes the HTTP endpoint the remote archival
// storage service pushes ingest completions to. The callback spares us
// most of the polling: a package waiting in STAGING is updated here,
// and the move worker's reconciliation loop notices the change on its
// next reload.
package service

import (
	"encoding/json"
	"net/http"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/context"
	"github.com/artefactual-labs/spaces/locations"
	"github.com/artefactual-labs/spaces/models"
	"github.com/julienschmidt/httprouter"
)

type CallbackService struct {
	Context *context.Context
	router  *httprouter.Router
}

func NewCallbackService(_context *context.Context) *CallbackService {
	service := &CallbackService{
		Context: _context,
	}
	router := httprouter.New()
	router.POST("/api/:version/file/:uuid/callback", service.handleCallback)
	service.router = router
	return service
}

// Router returns the service's handler, mostly so tests can drive it
// through httptest.
func (service *CallbackService) Router() http.Handler {
	return service.router
}

// Serve blocks, listening on the configured address.
func (service *CallbackService) Serve() error {
	address := service.Context.Config.Callback.ListenAddress
	service.Context.MessageLog.Info("Callback service listening on %s", address)
	return http.ListenAndServe(address, service.router)
}

func (service *CallbackService) handleCallback(writer http.ResponseWriter, request *http.Request, params httprouter.Params) {
	log := service.Context.MessageLog
	if params.ByName("version") != constants.CallbackAPIVersion {
		http.Error(writer, "Unsupported API version", http.StatusNotFound)
		return
	}
	if !service.authorized(request) {
		log.Warning("Rejected callback with bad credentials from %s", request.RemoteAddr)
		http.Error(writer, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	packageUUID := params.ByName("uuid")
	pkg, err := service.Context.Packages.Find(packageUUID)
	if err != nil {
		log.Error("Error loading package %s: %v", packageUUID, err)
		http.Error(writer, "Error loading package", http.StatusInternalServerError)
		return
	}
	if pkg == nil {
		log.Warning("Received callback for unknown package %s", packageUUID)
		http.Error(writer, "Unknown package", http.StatusNotFound)
		return
	}

	ingest := &models.Ingest{}
	if err = json.NewDecoder(request.Body).Decode(ingest); err != nil {
		log.Error("Could not decode callback body for package %s: %v", packageUUID, err)
		http.Error(writer, "Invalid request body", http.StatusBadRequest)
		return
	}

	locations.ApplyIngest(pkg, ingest, log)
	if err = service.Context.Packages.Save(pkg); err != nil {
		log.Error("Error saving package %s: %v", packageUUID, err)
		http.Error(writer, "Error saving package", http.StatusInternalServerError)
		return
	}
	log.Info("Callback for package %s: ingest %s is %s, package now %s",
		packageUUID, ingest.ID, ingest.Status.ID, pkg.Status)
	writer.WriteHeader(http.StatusAccepted)
}

// authorized checks the credentials embedded in the callback URL we
// originally handed to the remote service.
func (service *CallbackService) authorized(request *http.Request) bool {
	callback := service.Context.Config.Callback
	query := request.URL.Query()
	return query.Get("username") == callback.Username &&
		query.Get("api_key") == callback.APIKey
}
