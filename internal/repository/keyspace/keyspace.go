// Package keyspace lays out store keys for collections and records:
//
//	{prefix}collection:{name}   collection metadata hash
//	{prefix}idx:{name}          collection index
//	{prefix}rec:{name}:{id}     record hash
package keyspace

import (
	"strings"

	"github.com/kailas-cloud/chemdex/internal/domain"
)

// Keyspace builds keys under one namespace prefix.
type Keyspace struct {
	prefix string
}

// New creates a keyspace; an empty prefix means domain.KeyPrefix.
func New(prefix string) Keyspace {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the namespace prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// Meta returns the metadata key of a collection.
func (k Keyspace) Meta(collection string) string {
	return k.prefix + "collection:" + collection
}

// Index returns the index name of a collection.
func (k Keyspace) Index(collection string) string {
	return k.prefix + "idx:" + collection
}

// Records returns the key prefix shared by every record of a collection.
func (k Keyspace) Records(collection string) string {
	return k.prefix + "rec:" + collection + ":"
}

// Record returns the key of one record.
func (k Keyspace) Record(collection, id string) string {
	return k.Records(collection) + id
}

// RecordID extracts the record ID from a record key.
func (k Keyspace) RecordID(collection, key string) string {
	return strings.TrimPrefix(key, k.Records(collection))
}
