package bookstore

import "errors"

// ErrNotOpen reports a call against a nil Store or one without a database
// handle. Close does not reset the handle, so calls on a closed Store return
// database/sql's closed-database error instead. Callers should use
// errors.Is(err, ErrNotOpen).
var ErrNotOpen = errors.New("bookstore: store is not open")

// ErrReadOnly reports a write attempted against a read-only store.
// Callers should use errors.Is(err, ErrReadOnly).
var ErrReadOnly = errors.New("bookstore: store is read-only")

// ErrNotFound is an error value for a missing entry. The Get and Contains
// methods do not return it; they report a miss through their boolean result.
// Callers should use errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("bookstore: entry not found")

// ErrHashCollisionSuspected names the case of an existing entry at a key
// whose depth disagrees with the depth being written. No Store method
// returns it: Put and PutBatch overwrite the stored row without comparing
// depths, and nothing is logged.
var ErrHashCollisionSuspected = errors.New("bookstore: hash collision suspected")
