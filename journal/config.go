package journal

// Config holds configuration for the Service.
type Config struct {
	// RentPerByte is the balance an owner must hold per allocated byte.
	// Default: 6960 (3480 per byte-year, two-year exemption)
	// Zero disables rent.
	RentPerByte int64

	// AccountOverhead is the number of bytes every allocation is billed for
	// on top of its own space.
	// Default: 128
	AccountOverhead int64
}

// DefaultConfig returns the rent schedule of a two-year rent-exempt account:
// 3480 lamports per byte-year doubled, plus 128 bytes of account overhead.
func DefaultConfig() Config {
	return Config{
		RentPerByte:     6960,
		AccountOverhead: 128,
	}
}

// MinimumBalance returns the balance needed to keep space bytes allocated.
func (c Config) MinimumBalance(space int) int64 {
	if c.RentPerByte == 0 {
		return 0
	}
	return (c.AccountOverhead + int64(space)) * c.RentPerByte
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.RentPerByte < 0 {
		c.RentPerByte = 0
	}
	if c.AccountOverhead < 0 {
		c.AccountOverhead = 0
	}
}
