package itemtable

import (
	"fmt"
	"sync"

	"pretender/internal/sqlh"
)

// Generator produces the DDL statements for item/index/stream relations in
// one SQL dialect.
type Generator interface {
	CreateItemRelation(relation string) []string
	CreateIndexRelation(relation string) []string
	CreateStreamRelation(relation string) []string
	DropRelation(relation string) string
	ListRelationsByPrefix(prefix string) (query string, args sqlh.Args)
}

var (
	registryMu sync.RWMutex
	registry   = map[sqlh.Dialect]func() Generator{}
)

// Register adds a dialect's Generator constructor to the registry. Called
// from each dialect implementation's init(), matching the teacher's
// dialect.RegisterDialect pattern.
func Register(d sqlh.Dialect, ctor func() Generator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d] = ctor
}

// GeneratorFor returns the registered Generator for a dialect.
func GeneratorFor(d sqlh.Dialect) (Generator, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[d]
	if !ok {
		return nil, fmt.Errorf("itemtable: no DDL generator registered for dialect %q", d)
	}
	return ctor(), nil
}
