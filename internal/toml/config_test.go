package toml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "googleldap.cfg")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, `
domain = "example.com"
`))
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.Domain)
	assert.Equal(t, 300, cfg.CacheSize)
	assert.Equal(t, "0.0.0.0:10389", cfg.LDAP.Listen)
	assert.Equal(t, "client_secret.json", cfg.ClientSecretFile)
}

func TestNewConfigFull(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, `
debug = true
domain = "example.com"
clientsecretfile = "/etc/googleldap/secret.json"
cachesize = 1000
preload = true

[ldap]
  enabled = true
  listen = "0.0.0.0:1389"

[sync]
  server = "ldap://target:389"
  binddn = "cn=admin,dc=example,dc=com"
  bindpassword = "hunter2"
  basedn = "dc=example,dc=com"

[[serviceaccounts]]
  name = "monitor"
  passsha256 = "abcd"
`))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Preload)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, "ldap://target:389", cfg.Sync.Server)
	require.Len(t, cfg.ServiceAccounts, 1)
	assert.Equal(t, "monitor", cfg.ServiceAccounts[0].Name)
}

func TestNewConfigRejectsBadDomain(t *testing.T) {
	for _, domain := range []string{"", "example", "corp.example.com"} {
		_, err := NewConfig(writeConfig(t, `domain = "`+domain+`"`))
		assert.Error(t, err, "domain %q", domain)
	}
}

func TestNewConfigRejectsTinyCache(t *testing.T) {
	_, err := NewConfig(writeConfig(t, `
domain = "example.com"
cachesize = 4
`))
	assert.Error(t, err)
}

func TestNewConfigRejectsTLSWithoutKeys(t *testing.T) {
	_, err := NewConfig(writeConfig(t, `
domain = "example.com"
[ldap]
  enabled = true
  tls = true
`))
	assert.Error(t, err)
}
