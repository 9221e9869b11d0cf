package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/context"
	"github.com/artefactual-labs/spaces/models"
	"github.com/nsqio/go-nsq"
)

// MoveWorker moves packages between storage spaces. It reads
// MoveRequests from NSQ and routes them through the dispatcher, which
// picks the backend for each space. A from_storage move into a
// remote-archive space can block for hours while the remote ingest
// completes, which is why the NSQ message timeout for this worker
// should be generous and why the worker touches its message while it
// waits.
type MoveWorker struct {
	// Context contains basic information required to run, connect
	// to the package store, S3, etc.
	Context *context.Context
	// MoveChannel is for the go routines that perform the moves.
	MoveChannel chan *models.MoveState
	// PostProcessChannel is for the goroutines that record the
	// outcome of the move and finish or requeue the NSQ message.
	PostProcessChannel chan *models.MoveState
}

func NewMoveWorker(_context *context.Context) *MoveWorker {
	worker := &MoveWorker{
		Context: _context,
	}
	workerBufferSize := _context.Config.MoveWorker.Workers * 10
	worker.MoveChannel = make(chan *models.MoveState, workerBufferSize)
	worker.PostProcessChannel = make(chan *models.MoveState, workerBufferSize)
	for i := 0; i < _context.Config.MoveWorker.Workers; i++ {
		go worker.move()
		go worker.postProcess()
	}
	return worker
}

// This is the callback that NSQ workers use to handle messages from NSQ.
func (worker *MoveWorker) HandleMessage(message *nsq.Message) error {
	state, err := worker.buildState(message)
	if err != nil {
		worker.Context.MessageLog.Error(err.Error())
		return err
	}
	message.DisableAutoResponse()
	worker.MoveChannel <- state
	return nil
}

// buildState decodes the message body and loads or creates the
// package record it refers to.
func (worker *MoveWorker) buildState(message *nsq.Message) (*models.MoveState, error) {
	request := &models.MoveRequest{}
	if err := json.Unmarshal(message.Body, request); err != nil {
		return nil, fmt.Errorf("Could not unmarshal JSON data from NSQ: %v", err)
	}
	if request.Direction != models.MoveToStorage && request.Direction != models.MoveFromStorage {
		return nil, fmt.Errorf("Move request for package %s has unknown direction '%s'",
			request.PackageUUID, request.Direction)
	}
	pkg, err := worker.Context.Packages.Find(request.PackageUUID)
	if err != nil {
		return nil, fmt.Errorf("Error loading package %s: %v", request.PackageUUID, err)
	}
	if pkg == nil {
		pkg = models.NewPackage(request.PackageUUID, request.Source, request.SpaceUUID)
		if err = worker.Context.Packages.Save(pkg); err != nil {
			return nil, fmt.Errorf("Error saving package %s: %v", request.PackageUUID, err)
		}
	}
	return &models.MoveState{
		NSQMessage: message,
		Request:    request,
		Package:    pkg,
		Retry:      true,
	}, nil
}

func (worker *MoveWorker) move() {
	for state := range worker.MoveChannel {
		stopTouching := worker.touchUntilDone(state.NSQMessage)
		request := state.Request
		var err error
		switch request.Direction {
		case models.MoveToStorage:
			err = worker.Context.Dispatcher.MoveToStorageService(
				request.SourceSpaceUUID, request.Source,
				request.SpaceUUID, request.Destination, state.Package)
		case models.MoveFromStorage:
			state.Package.SpaceUUID = request.SpaceUUID
			err = worker.Context.Dispatcher.MoveFromStorageService(
				request.SpaceUUID, request.Source, request.Destination, state.Package)
		}
		if err != nil {
			state.ErrorMessage = fmt.Sprintf("Error moving package %s %s: %v",
				request.PackageUUID, request.Direction, err)
			if state.Package.Status == constants.StatusStaging {
				state.Package.Status = constants.StatusFail
			}
		}
		close(stopTouching)
		worker.PostProcessChannel <- state
	}
}

// touchUntilDone keeps the NSQ message alive while a long move is in
// progress. The returned channel stops the touch loop.
func (worker *MoveWorker) touchUntilDone(message *nsq.Message) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				message.Touch()
			}
		}
	}()
	return done
}

func (worker *MoveWorker) postProcess() {
	for state := range worker.PostProcessChannel {
		if err := worker.Context.Packages.Save(state.Package); err != nil {
			worker.Context.MessageLog.Error("Error saving package %s: %v",
				state.Package.UUID, err)
		}
		if state.HasError() {
			worker.Context.MessageLog.Error(state.ErrorMessage)
			worker.Context.IncrementFailed()
			if state.Retry {
				state.NSQMessage.Requeue(1 * time.Minute)
			} else {
				state.NSQMessage.Finish()
			}
		} else {
			worker.Context.MessageLog.Info("Package %s moved %s, status %s",
				state.Package.UUID, state.Request.Direction, state.Package.Status)
			worker.Context.IncrementSucceeded()
			worker.announceMove(state)
			state.NSQMessage.Finish()
		}
		worker.Context.LogStats()
	}
}

// announceMove publishes the completed move request to the result
// topic, if one is configured. A publish failure is logged but never
// fails the move itself.
func (worker *MoveWorker) announceMove(state *models.MoveState) {
	topic := worker.Context.Config.MoveResultTopic
	if topic == "" {
		return
	}
	if err := worker.Context.NSQClient.EnqueueMove(topic, state.Request); err != nil {
		worker.Context.MessageLog.Warning("Could not announce move of package %s to topic %s: %v",
			state.Package.UUID, topic, err)
	}
}
