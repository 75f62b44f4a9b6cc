package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/config"
	"github.com/tolelom/monchain/wallet"
)

func TestLoadConfigAppliesEnv(t *testing.T) {
	t.Setenv("MONCHAIN_STORAGE_BACKEND", config.BackendSQLite)
	t.Setenv("MONCHAIN_CHAIN_ID", "monchain-env")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "monchain-env", cfg.Genesis.ChainID)

	t.Setenv("MONCHAIN_STORAGE_BACKEND", "etcd")
	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "unknown backend")
}

func TestOpenDBBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := map[string]func(cfg *config.Config){
		config.BackendLevelDB: func(cfg *config.Config) {},
		config.BackendSQLite:  func(cfg *config.Config) {},
		config.BackendRedis: func(cfg *config.Config) {
			cfg.Storage.RedisAddr = mr.Addr()
			cfg.Storage.RedisNamespace = "test:"
		},
	}
	for backend, setup := range cases {
		t.Run(backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Storage.Backend = backend
			setup(cfg)

			db, err := openDB(cfg)
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, db.Set([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)
		})
	}
}

func TestGenkeyWritesKeystore(t *testing.T) {
	t.Setenv("MONCHAIN_PASSWORD", "pikachu")
	path := filepath.Join(t.TempDir(), "key.json")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"genkey", "--key", path})
	require.NoError(t, rootCmd.Execute())

	priv, err := wallet.LoadKey(path, "pikachu")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.String(), priv.Public().Hex()))

	rootCmd.SetArgs([]string{"genkey", "--key", path})
	assert.ErrorContains(t, rootCmd.Execute(), "already exists")
}
