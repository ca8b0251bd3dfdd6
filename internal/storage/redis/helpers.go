package redis

import "fmt"

// scanPageSize bounds how many records one LRANGE call returns.
const scanPageSize = 500

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = "focuswatch"
	}
	return keyspace{prefix: prefix}
}

// events is the list holding encoded records in append order
func (k keyspace) events() string {
	return k.prefix + ":events"
}

// sequence counts every append; it is the cache size marker
func (k keyspace) sequence() string {
	return k.prefix + ":events:seq"
}

func (k keyspace) checkpoint(name string) string {
	return fmt.Sprintf("%s:checkpoint:%s", k.prefix, name)
}
