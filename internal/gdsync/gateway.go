package gdsync

import (
	"context"
	"io"
)

// StorageGateway provides an interface for cloud storage backends. The
// engine opens one gateway per account; source and destination never share a
// gateway or a session.
//
// Content streams through io.Reader/io.Writer so large audio files never
// need to fit in memory.
type StorageGateway interface {
	// List returns the immediate children of folder, including sub-folders.
	// It never recurses.
	List(ctx context.Context, folder string) ([]Object, error)

	// Download writes the object's content to w.
	Download(ctx context.Context, id string, w io.Writer) error

	// Upload stores content as an object named name inside folder and
	// returns the object's ID. When an object with that name already exists
	// in the folder it is overwritten in place, which is what makes
	// re-running a partially completed asset safe. size is the number of
	// bytes that will be read from r. meta entries travel with the object
	// where the backend supports custom properties.
	Upload(ctx context.Context, folder string, name string, r io.Reader, size int64, meta map[string]string) (string, error)

	// Move relocates an object from one folder to another.
	Move(ctx context.Context, id string, fromFolder string, toFolder string) error

	// EnsureFolder returns the ID of the named child folder of parent,
	// creating it when it does not exist yet.
	EnsureFolder(ctx context.Context, parent string, name string) (string, error)
}
