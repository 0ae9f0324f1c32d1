package storage

import "errors"

// Common storage errors
var (
	// ErrNodeNotFound indicates that node was not found in storage
	ErrNodeNotFound = errors.New("node not found")

	// ErrConnectionNotFound indicates that connection was not found in storage
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrWorkspaceNotFound indicates that workspace was not found
	ErrWorkspaceNotFound = errors.New("workspace not found")
)
