package cmd

import (
	"fmt"

	inbound "github.com/mandate-authority/mandate-authority/internal/adapter/inbound/http"
	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	sqliteadapter "github.com/mandate-authority/mandate-authority/internal/adapter/outbound/sqlite"
	"github.com/mandate-authority/mandate-authority/internal/config"
	"github.com/mandate-authority/mandate-authority/internal/domain/agent"
	"github.com/mandate-authority/mandate-authority/internal/domain/mandate"
	"github.com/mandate-authority/mandate-authority/internal/domain/policy"
)

// persistenceStores bundles every store newPersistenceStores wires, so
// call sites name fields instead of tracking positional returns.
type persistenceStores struct {
	agents   agent.Store
	policies policy.PolicyStore
	rules    policy.RuleStore
	mandates mandate.Store
	db       inbound.DatabasePinger // nil for the in-memory backend
	close    func()
}

// newPersistenceStores wires the agent/policy/rule/mandate stores
// every command needs. cfg.DatabaseURL == "memory://" selects the
// in-memory stores (used by development/tests that want no on-disk
// state whatsoever); any other DSN is handed to the sqlite adapter as
// given — modernc.org/sqlite accepts both "file:path.db" DSNs and
// "file::memory:?cache=shared" for an in-process database, so
// SetDevDefaults' own "file:mandate-authority-dev.db" default already
// flows straight through here unchanged.
func newPersistenceStores(cfg *config.Config) (*persistenceStores, error) {
	if cfg.DatabaseURL == "memory://" {
		return &persistenceStores{
			agents:   memory.NewAgentStore(),
			policies: memory.NewPolicyStore(),
			rules:    memory.NewRuleStore(),
			mandates: memory.NewMandateStore(),
			close:    func() {},
		}, nil
	}

	db, err := sqliteadapter.Open(sqliteadapter.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &persistenceStores{
		agents:   sqliteadapter.NewAgentStore(db),
		policies: sqliteadapter.NewPolicyStore(db),
		rules:    sqliteadapter.NewRuleStore(db),
		mandates: sqliteadapter.NewMandateStore(db),
		db:       db,
		close:    func() { db.Close() },
	}, nil
}
