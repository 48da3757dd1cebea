package config

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, .env files, and environment variable loading.

const (
	// DefaultProtocol is the exchange run when --protocol is omitted.
	DefaultProtocol = ProtocolTCP

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// Postgres credentials matching the test fixture database.
	DefaultPGUser     = "test"
	DefaultPGPassword = "test"
	DefaultPGDatabase = "test"

	// DefaultEnvFile is read by Load when present.
	DefaultEnvFile = ".env"

	// EnvPrefix starts every supported environment variable.
	EnvPrefix = "SOCKETS_"
)
