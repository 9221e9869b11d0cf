package context

import (
	"fmt"
	stdlog "log"
	"os"
	"sync/atomic"

	"github.com/artefactual-labs/spaces/locations"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/network"
	"github.com/artefactual-labs/spaces/store"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/logger"
	"github.com/op/go-logging"
)

/*
Context sets up the items common to the long-running services (the
move worker, the callback service, etc.). It also encapsulates some
functions common to all of those services.
*/
type Context struct {
	Config        *models.Config
	MessageLog    *logging.Logger
	JsonLog       *stdlog.Logger
	NSQClient     *network.NSQClient
	Packages      *store.PackageStore
	RepackPool    *tarball.RepackPool
	Dispatcher    *locations.Dispatcher
	pathToLogFile string
	pathToJsonLog string
	succeeded     int64
	failed        int64
}

/*
Creates and returns a new Context object. Because some items are
absolutely required by this object and the processes that use it,
this method will exit if it gets an invalid config param from the
command line, or if it cannot set up some essential services, such
as logging or the package store.

This object is meant to be used as a singleton within any of the
stand-alone processing services.
*/
func NewContext(config *models.Config) (context *Context) {
	context = &Context{
		succeeded: int64(0),
		failed:    int64(0),
	}
	context.Config = config
	context.MessageLog, context.pathToLogFile = logger.InitLogger(config)
	context.JsonLog, context.pathToJsonLog = logger.InitJsonLogger(config)
	context.NSQClient = network.NewNSQClient(config.NsqdHttpAddress)
	context.RepackPool = tarball.NewRepackPool(config.RepackWorkers)
	context.initPackageStore()
	context.initDispatcher()
	return context
}

// Initializes the bolt-backed package store.
func (context *Context) initPackageStore() {
	packages, err := store.NewPackageStore(context.Config.PackageStorePath)
	if err != nil {
		message := fmt.Sprintf("Exiting. Cannot open package store at '%s': %v",
			context.Config.PackageStorePath, err)
		fmt.Fprintln(os.Stderr, message)
		context.MessageLog.Fatal(message)
	}
	context.Packages = packages
}

// Builds the dispatcher serving every configured space.
func (context *Context) initDispatcher() {
	dispatcher, err := locations.BuildDispatcher(context.Config, context.Packages,
		context.RepackPool, context.MessageLog)
	if err != nil {
		message := fmt.Sprintf("Exiting. Cannot set up storage spaces: %v", err)
		fmt.Fprintln(os.Stderr, message)
		context.MessageLog.Fatal(message)
	}
	context.Dispatcher = dispatcher
}

// Returns the number of work items that succeeded.
func (context *Context) Succeeded() int64 {
	return context.succeeded
}

// Returns the number of work items that failed.
func (context *Context) Failed() int64 {
	return context.failed
}

// Increases the count of successfully processed items by one.
func (context *Context) IncrementSucceeded() int64 {
	atomic.AddInt64(&context.succeeded, 1)
	return context.succeeded
}

// Increases the count of unsuccessfully processed items by one.
func (context *Context) IncrementFailed() int64 {
	atomic.AddInt64(&context.failed, 1)
	return context.failed
}

// Returns the path to this process' log file
func (context *Context) PathToLogFile() string {
	return context.pathToLogFile
}

// Returns the path to this process' JSON log file
func (context *Context) PathToJsonLog() string {
	return context.pathToJsonLog
}

// Logs info about the number of items that have succeeded and failed.
func (context *Context) LogStats() {
	context.MessageLog.Info("**STATS** Succeeded: %d, Failed: %d",
		context.Succeeded(), context.Failed())
}
