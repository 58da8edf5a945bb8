package mcts

import "errors"

var (
	// ErrNodeNotFound is returned when a node id has no entry in the
	// search state.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidState is returned when a search state snapshot fails
	// basic shape checks (empty node map, missing root or current node).
	ErrInvalidState = errors.New("invalid search state")
)
