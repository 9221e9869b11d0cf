package models

import (
	"github.com/nsqio/go-nsq"
)

// MoveState holds the state of a move operation as it passes through
// the move worker's channels.
type MoveState struct {
	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message
	// Request is the decoded body of the NSQ message.
	Request *MoveRequest
	// Package is the package record being moved.
	Package *Package
	// ErrorMessage is empty until something goes wrong.
	ErrorMessage string
	// Retry tells the post-process step whether a failed move is
	// worth requeuing.
	Retry bool
}

// HasError returns true if an error occurred during the move.
func (state *MoveState) HasError() bool {
	return state.ErrorMessage != ""
}
