package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(network string) Record {
	return Record{
		Network:         network,
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Deployer:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Timestamp:       FormatTimestamp(time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)),
		Explorer:        "https://testnet.bscscan.com/address/0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TransactionHash: "0x9c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb658",
		BlockNumber:     42,
		ChainID:         97,
		GasUsed:         3_100_000,
		GasLimit:        10_000_000,
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	store := NewStore(t.TempDir())
	rec := sampleRecord("testnet-A")

	require.NoError(t, store.Save(rec))

	loaded, found, err := store.Load("testnet-A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, loaded)
}

func TestStore_LoadAbsent(t *testing.T) {
	store := NewStore(t.TempDir())

	rec, found, err := store.Load("testnet-A")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Record{}, rec)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	first := sampleRecord("testnet-A")
	require.NoError(t, store.Save(first))

	second := sampleRecord("testnet-A")
	second.ContractAddress = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	second.GasUsed = 0
	second.GasLimit = 0
	require.NoError(t, store.Save(second))

	loaded, found, err := store.Load("testnet-A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, loaded)

	raw, err := os.ReadFile(store.Path("testnet-A"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "gasUsed")
}

func TestStore_FileLayout(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Save(sampleRecord("bscTestnet")))

	path := filepath.Join(root, "deployments", "bscTestnet", "deploy-info.json")
	assert.Equal(t, path, store.Path("bscTestnet"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"network\": \"bscTestnet\",\n"), string(raw))
}

func TestStore_LoadAcceptsScriptWrittenRecord(t *testing.T) {
	tests := []struct {
		network  string
		explorer string
	}{
		{"bscTestnet", "https://testnet.bscscan.com/address/0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		// hardhat has no explorer base URL, so only the path is written.
		{"hardhat", "/address/0x5FbDB2315678afecb367f032d93F642f64180aa3"},
	}

	for _, tc := range tests {
		t.Run(tc.network, func(t *testing.T) {
			store := NewStore(t.TempDir())
			path := store.Path(tc.network)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

			content := `{
  "network": "` + tc.network + `",
  "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
  "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
  "timestamp": "2025-03-01T12:30:00.123Z",
  "explorer": "` + tc.explorer + `"
}`
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			rec, found, err := store.Load(tc.network)
			require.NoError(t, err)
			require.True(t, found)

			deployedAt, err := rec.DeployedAt()
			require.NoError(t, err)
			assert.Equal(t, 2025, deployedAt.Year())
			assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", rec.Contract().Hex())
			assert.Equal(t, tc.explorer, rec.Explorer)
		})
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{"},
		{name: "truncated", content: `{"network": "testnet-A", "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3"`},
		{name: "empty object", content: `{}`},
		{name: "wrong type", content: `{"network": "testnet-A", "contractAddress": 12, "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "2025-03-01T12:30:00Z"}`},
		{name: "bad address", content: `{"network": "testnet-A", "contractAddress": "0x123", "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "2025-03-01T12:30:00Z"}`},
		{name: "bad timestamp", content: `{"network": "testnet-A", "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "yesterday"}`},
		{name: "unknown field", content: `{"network": "testnet-A", "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "2025-03-01T12:30:00Z", "proxy": true}`},
		{name: "foreign network", content: `{"network": "bscMainnet", "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "2025-03-01T12:30:00Z"}`},
		{name: "trailing data", content: `{"network": "testnet-A", "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "deployer": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "timestamp": "2025-03-01T12:30:00Z"} {}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore(t.TempDir())
			path := store.Path("testnet-A")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))

			_, found, err := store.Load("testnet-A")
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrCorruptRecord)
			assert.ErrorIs(t, err, failure.ErrState)
			assert.False(t, found)
		})
	}
}

func TestStore_SaveRejectsInvalidRecord(t *testing.T) {
	store := NewStore(t.TempDir())
	rec := sampleRecord("testnet-A")
	rec.ContractAddress = "nope"

	require.Error(t, store.Save(rec))

	_, found, err := store.Load("testnet-A")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Lock(t *testing.T) {
	store := NewStore(t.TempDir())

	unlock, err := store.Lock("testnet-A")
	require.NoError(t, err)
	unlock()

	unlock, err = store.Lock("testnet-A")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, store.Save(sampleRecord("testnet-A")))
}
