package types

import (
	"context"
	"errors"
)

// ObjectTypeTerm is the metadata object type backing term metadata.
const ObjectTypeTerm = "term"

// TermMeta is one row of the termmeta table. Several rows may share
// (TermID, Key); uniqueness is only enforced on request by the add path.
type TermMeta struct {
	MetaID int64  `json:"meta_id"`
	TermID int64  `json:"term_id"`
	Key    string `json:"meta_key"`
	Value  string `json:"meta_value"`
}

// TermMetaStore is the public accessor surface for term metadata. Boolean
// results follow the metadata subsystem contract: false with a nil error
// means the operation was refused or matched nothing.
type TermMetaStore interface {
	// AddTermMeta inserts a row. With unique set it refuses when a row with
	// the same term and key exists.
	AddTermMeta(ctx context.Context, termID int64, key, value string, unique bool) (bool, error)

	// GetTermMeta returns every value stored under key, in insertion order.
	GetTermMeta(ctx context.Context, termID int64, key string) ([]string, error)

	// GetTermMetaSingle returns the first value stored under key, or "".
	GetTermMetaSingle(ctx context.Context, termID int64, key string) (string, error)

	// AllTermMeta returns every key of the term with its values.
	AllTermMeta(ctx context.Context, termID int64) (map[string][]string, error)

	// UpdateTermMeta overwrites rows matching (term, key[, prevValue]) or adds
	// one when the key is absent and prevValue is empty.
	UpdateTermMeta(ctx context.Context, termID int64, key, value, prevValue string) (bool, error)

	// DeleteTermMeta removes rows matching (term, key[, value]).
	DeleteTermMeta(ctx context.Context, termID int64, key, value string) (bool, error)

	// DeleteTermMetaByKey removes every row with key across all terms.
	DeleteTermMetaByKey(ctx context.Context, key string) (bool, error)
}

// Metadata subsystem errors.
var (
	ErrInvalidObjectType = errors.New("invalid metadata object type")
	ErrInvalidObjectID   = errors.New("object ID must be positive")
	ErrInvalidMetaID     = errors.New("meta ID must be positive")
	ErrInvalidKey        = errors.New("meta key must not be empty")
	ErrMetaTableMissing  = errors.New("metadata table is not registered on the handle")
	ErrMetaNotFound      = errors.New("metadata row not found")
)
