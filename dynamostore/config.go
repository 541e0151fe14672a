package dynamostore

// Config holds configuration for the Store.
type Config struct {
	// EntryTable is the name of the journal entries table.
	// Default: "journal_entries"
	EntryTable string

	// CounterTable is the name of the sequence counters table.
	// Default: "journal_counters"
	CounterTable string

	// BalanceTable is the name of the owner balances table.
	// Default: "journal_balances"
	BalanceTable string
}

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		EntryTable:   "journal_entries",
		CounterTable: "journal_counters",
		BalanceTable: "journal_balances",
	}
}

// validate fills in missing table names.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.EntryTable == "" {
		c.EntryTable = def.EntryTable
	}
	if c.CounterTable == "" {
		c.CounterTable = def.CounterTable
	}
	if c.BalanceTable == "" {
		c.BalanceTable = def.BalanceTable
	}
}
