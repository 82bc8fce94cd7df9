package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
instruments:
  - symbol: XAUUSD
    contract_multiplier: 100
    description: gold spot, 100 oz per lot
  - symbol: EURUSD
    contract_multiplier: 100000
`)
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 100.0, c.Multiplier("XAUUSD", 100_000))
	assert.Equal(t, 100_000.0, c.Multiplier("EURUSD", 1))
	// 未收录品种退回 fallback
	assert.Equal(t, 100_000.0, c.Multiplier("GBPJPY", 100_000))
}

func TestLoadCatalogEmptyPath(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 42.0, c.Multiplier("ANY", 42))
}

func TestLoadCatalogStrictFields(t *testing.T) {
	path := writeCatalog(t, `
instruments:
  - symbol: XAUUSD
    contract_multiplier: 100
    lot_size: 1
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalogRejectsBadEntries(t *testing.T) {
	path := writeCatalog(t, "instruments:\n  - symbol: \"\"\n    contract_multiplier: 100\n")
	_, err := LoadCatalog(path)
	assert.Error(t, err)

	path = writeCatalog(t, "instruments:\n  - symbol: XAUUSD\n    contract_multiplier: 0\n")
	_, err = LoadCatalog(path)
	assert.Error(t, err)
}
