// Package config loads the node and client settings from .env files and
// FUNDRAISER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FUNDRAISER_"

// Default values.
const (
	DefaultDBType         = "pebble"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 9090
	DefaultLogLevel       = log.LogLevelInfo
	DefaultLogOutput      = "stdout"
	DefaultChainID        = 31337
	DefaultNodeURL        = "http://127.0.0.1:9090"
	DefaultLedgerAddress  = "0x00000000000000000000000000000000000001ed"
	DefaultTokenAddress   = "0x000000000000000000000000000000000000707e"
	defaultDataDirSegment = ".fundraiser"
)

// DefaultEnvFiles are the files read by Load, if present. Values already
// set in the environment take precedence over them.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds the settings of the node and of the command line client.
type Config struct {
	DataDir   string
	DBType    string
	Host      string
	Port      int
	LogLevel  string
	LogOutput string

	OwnerAddress   common.Address
	LedgerAddress  common.Address
	TokenAddress   common.Address
	GatewayChainID uint64
	MaxPlaintext   uint64
	// NetworkKey is the hex encoded coprocessor private key. When empty the
	// node generates one and persists it.
	NetworkKey string

	// NodeURL and PrivateKey are used by the client commands.
	NodeURL    string
	PrivateKey string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dataDir := defaultDataDirSegment
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, defaultDataDirSegment)
	}
	return &Config{
		DataDir:        dataDir,
		DBType:         DefaultDBType,
		Host:           DefaultHost,
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		LogOutput:      DefaultLogOutput,
		LedgerAddress:  common.HexToAddress(DefaultLedgerAddress),
		TokenAddress:   common.HexToAddress(DefaultTokenAddress),
		GatewayChainID: DefaultChainID,
		MaxPlaintext:   fhe.DefaultMaxPlaintext,
		NodeURL:        DefaultNodeURL,
	}
}

// Load reads the env files (DefaultEnvFiles if none is given; missing
// files are skipped) and then the FUNDRAISER_* variables on top of the
// defaults.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", f, err)
		}
		log.Debugw("env file loaded", "file", f)
	}

	c := Default()
	c.DataDir = getenv("DATADIR", c.DataDir)
	c.DBType = getenv("DBTYPE", c.DBType)
	c.Host = getenv("HOST", c.Host)
	c.LogLevel = getenv("LOGLEVEL", c.LogLevel)
	c.LogOutput = getenv("LOGOUTPUT", c.LogOutput)
	c.NetworkKey = getenv("NETWORKKEY", c.NetworkKey)
	c.NodeURL = getenv("NODEURL", c.NodeURL)
	c.PrivateKey = getenv("PRIVKEY", c.PrivateKey)

	var err error
	if c.Port, err = getenvInt("PORT", c.Port); err != nil {
		return nil, err
	}
	if c.GatewayChainID, err = getenvUint("CHAINID", c.GatewayChainID); err != nil {
		return nil, err
	}
	if c.MaxPlaintext, err = getenvUint("MAXPLAINTEXT", c.MaxPlaintext); err != nil {
		return nil, err
	}
	if c.OwnerAddress, err = getenvAddress("OWNER", c.OwnerAddress); err != nil {
		return nil, err
	}
	if c.LedgerAddress, err = getenvAddress("LEDGER", c.LedgerAddress); err != nil {
		return nil, err
	}
	if c.TokenAddress, err = getenvAddress("TOKEN", c.TokenAddress); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the settings needed to run a node.
func (c *Config) Validate() error {
	var errs []error
	if c.OwnerAddress == (common.Address{}) {
		errs = append(errs, fmt.Errorf("owner address not set (%sOWNER)", EnvPrefix))
	}
	if c.LedgerAddress == (common.Address{}) {
		errs = append(errs, fmt.Errorf("ledger address not set (%sLEDGER)", EnvPrefix))
	}
	if c.TokenAddress == (common.Address{}) {
		errs = append(errs, fmt.Errorf("token address not set (%sTOKEN)", EnvPrefix))
	}
	if c.LedgerAddress == c.TokenAddress {
		errs = append(errs, fmt.Errorf("ledger and token addresses must differ"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.DBType != DefaultDBType && c.DBType != storage.TypeMemory {
		errs = append(errs, fmt.Errorf("invalid database type %q", c.DBType))
	}
	if c.MaxPlaintext == 0 || c.MaxPlaintext > fhe.MaxPlaintextLimit {
		errs = append(errs, fmt.Errorf("max plaintext %d out of range (1 to %d)", c.MaxPlaintext, uint64(fhe.MaxPlaintextLimit)))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + k)); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	s := getenv(k, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", EnvPrefix, k, err)
	}
	return v, nil
}

func getenvUint(k string, def uint64) (uint64, error) {
	s := getenv(k, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", EnvPrefix, k, err)
	}
	return v, nil
}

func getenvAddress(k string, def common.Address) (common.Address, error) {
	s := getenv(k, "")
	if s == "" {
		return def, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s%s: %q is not an address", EnvPrefix, k, s)
	}
	return common.HexToAddress(s), nil
}
