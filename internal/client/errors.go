package client

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

var (
	ErrCallRejected      = errors.New("callee rejected the call")
	ErrTimeout           = errors.New("timeout")
	ErrConnectionClosed  = errors.New("signaling connection closed")
	ErrPeerLeft          = errors.New("peer left")
	ErrUnexpectedMessage = errors.New("unexpected signaling message")
)

// CallError describes a failed client operation, optionally against a peer.
type CallError struct {
	Op      string
	Peer    signaling.PeerID
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func NewPeerError(op string, peer signaling.PeerID, err error) *CallError {
	return &CallError{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
