package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artefactual-labs/spaces/util/fileutil"
	"github.com/op/go-logging"
)

type WorkerConfig struct {
	// This describes how often the NSQ client should ping
	// the NSQ server to let it know it's still there. The
	// setting must be formatted like so:
	//
	// "800ms" for 800 milliseconds
	// "10s" for ten seconds
	// "1m" for one minute
	HeartbeatInterval string

	// The maximum number of times the worker should try to
	// process a job before giving up and requeuing it.
	MaxAttempts uint16

	// Maximum number of jobs a worker will accept from the
	// queue at one time.
	MaxInFlight int

	// If the NSQ server does not hear from a client that a
	// job is complete in this amount of time, the server
	// considers the job to have timed out and re-queues it.
	// Remote-archive moves wait out an asynchronous ingest,
	// so this should be generous ("180m" or so).
	MessageTimeout string

	// Number of go routines used to perform network I/O.
	NetworkConnections int

	// The name of the NSQ Channel the worker should read from.
	NsqChannel string

	// The name of the NSQ Topic the worker should listen to.
	NsqTopic string

	// This describes how long the NSQ client will wait for
	// a read from the NSQ server before timing out. The format
	// is the same as for HeartbeatInterval.
	ReadTimeout string

	// Number of go routines to start in the worker to
	// handle all work other than network I/O.
	Workers int

	// This describes how long the NSQ client will wait for
	// a write to the NSQ server to complete before timing out.
	// The format is the same as for HeartbeatInterval.
	WriteTimeout string
}

// CallbackConfig describes the HTTP endpoint we expose so the remote
// archival storage service can push ingest completions to us instead
// of making us poll.
type CallbackConfig struct {
	// ListenAddress is the host:port the callback service binds to.
	ListenAddress string

	// BaseURL is the externally reachable URL of the callback
	// service, as seen from the remote archival storage service.
	BaseURL string

	// Username and APIKey are the credentials embedded in the
	// callback URL we hand to the remote service. Requests arriving
	// without them are rejected.
	Username string
	APIKey   string
}

// SpaceConfig pairs a space record with its protocol-specific
// settings. Settings is left raw here and decoded by the backend
// factory according to the space's access protocol; purely local
// protocols need no settings at all.
type SpaceConfig struct {
	Space    Space
	Settings json.RawMessage
}

type Config struct {
	// ActiveConfig is the configuration file currently in use.
	ActiveConfig string

	// Settings for the callback service that receives pushed
	// ingest completions.
	Callback CallbackConfig

	// LogDirectory is where we'll write our log files.
	LogDirectory string

	// LogLevel is defined in github.com/op/go-logging
	// and should be one of the following:
	// 1 - CRITICAL
	// 2 - ERROR
	// 3 - WARNING
	// 4 - NOTICE
	// 5 - INFO
	// 6 - DEBUG
	LogLevel logging.Level

	// If true, processes will log to STDERR in addition
	// to their standard log files. You really only want
	// to do this in development.
	LogToStderr bool

	// Config options for the worker that moves packages to and
	// from storage.
	MoveWorker WorkerConfig

	// MoveResultTopic is the NSQ topic where the move worker
	// announces completed moves so downstream consumers can pick
	// them up. Leave empty to disable the announcements.
	MoveResultTopic string

	// NsqdHttpAddress tells us where to find the NSQ server
	// where we can read from and write to topics and channels.
	// It's typically something like "http://localhost:4151".
	NsqdHttpAddress string

	// NsqLookupd is the full HTTP(S) address of the NSQ Lookup
	// daemon, which is where our worker processes look first to
	// discover where they can find topics and channels. It's
	// typically something like "localhost:4161".
	NsqLookupd string

	// PackageStorePath is the path to the BoltDB file where we
	// persist package and space records.
	PackageStorePath string

	// RepackWorkers is the number of go routines allowed to
	// repack bags concurrently after identifier resolution.
	RepackWorkers int

	// Spaces lists every storage space this deployment serves,
	// each with its protocol-specific settings.
	Spaces []SpaceConfig
}

// LoadConfigFile loads the JSON config file at pathToConfigFile.
// Returns a Config object or an error if the file is missing or
// contains invalid JSON.
func LoadConfigFile(pathToConfigFile string) (*Config, error) {
	config := &Config{}
	err := fileutil.JsonFileToObject(pathToConfigFile, config)
	if err != nil {
		detailedError := fmt.Errorf("Error reading config file '%s': %v",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config.ActiveConfig = pathToConfigFile
	config.expandFilePaths()
	return config, nil
}

// EnsureLogDirectory creates the log directory if it does not already
// exist, and returns its absolute path.
func (config *Config) EnsureLogDirectory() (string, error) {
	if config.LogDirectory == "" {
		return "", fmt.Errorf("You must define config.LogDirectory")
	}
	absLogDir := config.AbsLogDirectory()
	err := os.MkdirAll(absLogDir, 0755)
	if err != nil {
		return "", err
	}
	return absLogDir, nil
}

func (config *Config) AbsLogDirectory() string {
	absLogDir, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		msg := fmt.Sprintf("Cannot get absolute path to log directory. "+
			"config.LogDirectory is set to '%s'", config.LogDirectory)
		panic(msg)
	}
	return absLogDir
}

// Expands ~ file paths to absolute paths.
func (config *Config) expandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.PackageStorePath)
	if err == nil {
		config.PackageStorePath = expanded
	}
}
