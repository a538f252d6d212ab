package config

// config file
type (
	LDAP struct {
		Enabled     bool
		Listen      string
		TLS         bool
		TLSCertPath string
		TLSKeyPath  string
	}

	API struct {
		Cert      string
		Enabled   bool
		Internals bool
		Key       string
		Listen    string
		TLS       bool
	}

	// Sync describes the writable target directory that the batch
	// synchronizer pushes the Google directory into.
	Sync struct {
		Server       string // e.g. ldap://localhost:389
		BindDN       string
		BindPassword string
		BaseDN       string // e.g. dc=example,dc=com
	}

	// ServiceAccount is a locally verified bind identity. Service
	// accounts never reach the upstream provider; their secrets are
	// checked against the stored hashes only.
	ServiceAccount struct {
		Name       string
		PassSHA256 string
		PassBcrypt string
	}

	Config struct {
		API              API
		ConfigFile       string
		Debug            bool
		StructuredLog    bool
		Domain           string
		ClientSecretFile string
		CacheSize        int
		Preload          bool
		LDAP             LDAP
		Sync             Sync
		ServiceAccounts  []ServiceAccount
	}
)
