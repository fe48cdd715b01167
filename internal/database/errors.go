package database

import "errors"

var (
	// ErrPersistence wraps every failed write.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicatePost is returned by SavePost when a post with the same URL is already stored.
	ErrDuplicatePost = errors.New("post already stored")

	// ErrInvalidRecord is returned for records that cannot be stored as given,
	// such as a comment whose parent index does not precede it.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
	// and there is no database yet.
	ErrDatabaseNotFound = errors.New("database not found")
)
