// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package node wires C1-C9 into the running orchestrator (C10): startup
// modes, the mining/orderer schedulers, reward construction, and the
// ambient config/API/metrics surface spec.md §6 and §4.10 describe.
package node

import (
	"os"
	"strconv"
	"strings"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/agrichain/harvestnode/crypto"
	"github.com/agrichain/harvestnode/storage/database"
)

// PeerDescriptor is a bootstrap peer to dial at startup.
type PeerDescriptor struct {
	PublicKey string `toml:"publicKey"`
	WSAddress string `toml:"wsAddress"`
}

// Config holds every recognized option of spec.md §6. Field names mirror
// the option names so loadFromEnv's reflection-free env-var read stays a
// straight line, matching the teacher's non-generic config-loading habit
// (cmd/utils/flags.go builds node.Config by hand from flag values, not a
// struct tag framework).
type Config struct {
	AppPort            int
	APIPort            int
	MyAddress          string
	PrivateKeyHex      string
	Peers              []PeerDescriptor
	MaxPeers           int
	EnableChainRequest bool
	EnableMining       bool
	IsOrdererNode      bool
	EnableAPI          bool

	DataDir string
	DBType  database.DBType
	NAT     string
}

// DefaultConfig mirrors the teacher's DefaultConfig var in node/defaults.go:
// reasonable standalone-node settings, overridden by environment variables
// and an optional TOML file.
var DefaultConfig = Config{
	AppPort:  30303,
	APIPort:  8080,
	MaxPeers: 25,
	DataDir:  "",
	DBType:   database.MEMDB,
	NAT:      "none",
}

// LoadConfig builds a Config from the recognized environment variables
// (spec.md §6), optionally overlaying a TOML file named by
// HARVESTNODE_CONFIG_FILE first. Config-file *discovery* (search paths,
// XDG dirs, etc.) is out of scope; only an explicit path is honored.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig

	if path := os.Getenv("HARVESTNODE_CONFIG_FILE"); path != "" {
		if err := loadTOMLFile(path, &cfg); err != nil {
			return nil, errors.Wrap(err, "node: load config file")
		}
	}

	loadFromEnv(&cfg)

	if cfg.PrivateKeyHex == "" {
		return nil, errors.New("node: PRIVATE_KEY is required")
	}
	if _, err := crypto.PrivateKeyFromHex(cfg.PrivateKeyHex); err != nil {
		return nil, errors.Wrap(err, "node: PRIVATE_KEY is not a valid key")
	}
	return &cfg, nil
}

func loadTOMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewDecoder(f).Decode(cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("APP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AppPort = n
		}
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = n
		}
	}
	if v := os.Getenv("MY_ADDRESS"); v != "" {
		cfg.MyAddress = v
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		cfg.PrivateKeyHex = v
	}
	if v := os.Getenv("PEERS"); v != "" {
		cfg.Peers = parsePeers(v)
	}
	if v := os.Getenv("MAX_PEERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPeers = n
		}
	}
	if v := os.Getenv("ENABLE_CHAIN_REQUEST"); v != "" {
		cfg.EnableChainRequest = isTrue(v)
	}
	if v := os.Getenv("ENABLE_MINING"); v != "" {
		cfg.EnableMining = isTrue(v)
	}
	if v := os.Getenv("IS_ORDERER_NODE"); v != "" {
		cfg.IsOrdererNode = isTrue(v)
	}
	if v := os.Getenv("ENABLE_API"); v != "" {
		cfg.EnableAPI = isTrue(v)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DB_TYPE"); v != "" {
		cfg.DBType = database.DBType(v)
	}
	if v := os.Getenv("NAT"); v != "" {
		cfg.NAT = v
	}
}

// parsePeers decodes "pubkeyA@wsAddrA,pubkeyB@wsAddrB" (spec.md §6's
// "bootstrap peer descriptors").
func parsePeers(v string) []PeerDescriptor {
	var out []PeerDescriptor
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, PeerDescriptor{PublicKey: parts[0], WSAddress: parts[1]})
	}
	return out
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
