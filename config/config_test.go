package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-fundraiser/fhe"
)

const owner = "0x1111111111111111111111111111111111111111"

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)
	conf, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	c.Assert(err, qt.IsNil)
	c.Assert(conf.Port, qt.Equals, DefaultPort)
	c.Assert(conf.DBType, qt.Equals, DefaultDBType)
	c.Assert(conf.MaxPlaintext, qt.Equals, uint64(fhe.DefaultMaxPlaintext))
	c.Assert(conf.LedgerAddress, qt.Equals, common.HexToAddress(DefaultLedgerAddress))

	// no owner
	c.Assert(conf.Validate(), qt.ErrorMatches, "(?s).*owner address not set.*")
}

func TestLoadEnv(t *testing.T) {
	c := qt.New(t)
	file := filepath.Join(t.TempDir(), "test.env")
	c.Assert(os.WriteFile(file, []byte(
		"FUNDRAISER_OWNER="+owner+"\n"+
			"FUNDRAISER_PORT=7000\n"+
			"FUNDRAISER_DBTYPE=memory\n"), 0o600), qt.IsNil)
	t.Setenv("FUNDRAISER_PORT", "8000")
	t.Setenv("FUNDRAISER_CHAINID", "5")
	// godotenv never overrides variables already set, restore what it sets
	t.Setenv("FUNDRAISER_OWNER", "")
	t.Setenv("FUNDRAISER_DBTYPE", "")
	c.Assert(os.Unsetenv("FUNDRAISER_OWNER"), qt.IsNil)
	c.Assert(os.Unsetenv("FUNDRAISER_DBTYPE"), qt.IsNil)

	conf, err := Load(file)
	c.Assert(err, qt.IsNil)
	c.Assert(conf.OwnerAddress, qt.Equals, common.HexToAddress(owner))
	c.Assert(conf.Port, qt.Equals, 8000)
	c.Assert(conf.GatewayChainID, qt.Equals, uint64(5))
	c.Assert(conf.DBType, qt.Equals, "memory")
	c.Assert(conf.Validate(), qt.IsNil)
}

func TestLoadInvalid(t *testing.T) {
	c := qt.New(t)
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("FUNDRAISER_PORT", "http")
	_, err := Load(missing)
	c.Assert(err, qt.ErrorMatches, "invalid FUNDRAISER_PORT.*")

	t.Setenv("FUNDRAISER_PORT", "")
	t.Setenv("FUNDRAISER_LEDGER", "0x12")
	_, err = Load(missing)
	c.Assert(err, qt.ErrorMatches, "invalid FUNDRAISER_LEDGER.*")
}

func TestValidate(t *testing.T) {
	c := qt.New(t)
	conf := Default()
	conf.OwnerAddress = common.HexToAddress(owner)
	c.Assert(conf.Validate(), qt.IsNil)

	conf.Port = 70000
	conf.DBType = "sqlite"
	conf.TokenAddress = conf.LedgerAddress
	err := conf.Validate()
	c.Assert(err, qt.ErrorMatches, "(?s).*invalid port 70000.*")
	c.Assert(err, qt.ErrorMatches, "(?s).*invalid database type.*")
	c.Assert(err, qt.ErrorMatches, "(?s).*must differ.*")
}

func TestValidateMaxPlaintext(t *testing.T) {
	c := qt.New(t)
	conf := Default()
	conf.OwnerAddress = common.HexToAddress(owner)

	conf.MaxPlaintext = fhe.MaxPlaintextLimit
	c.Assert(conf.Validate(), qt.IsNil)
	for _, v := range []uint64{0, fhe.MaxPlaintextLimit + 1, 1 << 60, ^uint64(0)} {
		conf.MaxPlaintext = v
		c.Assert(conf.Validate(), qt.ErrorMatches, "max plaintext .* out of range .*")
	}

	t.Setenv("FUNDRAISER_OWNER", owner)
	t.Setenv("FUNDRAISER_MAXPLAINTEXT", "1152921504606846976")
	conf, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	c.Assert(err, qt.IsNil)
	c.Assert(conf.Validate(), qt.ErrorMatches, "max plaintext 1152921504606846976 out of range .*")
}
