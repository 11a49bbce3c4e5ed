package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hardhatKey0     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAccount0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	hardhatKey1     = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	hardhatAccount1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestNewLocal(t *testing.T) {
	s, err := NewLocal(hardhatKey0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(hardhatAccount0), s.Address())

	s, err = NewLocal(hardhatKey1)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(hardhatAccount1), s.Address())

	_, err = NewLocal("0xnothex")
	assert.ErrorIs(t, err, failure.ErrMissingCredential)
}

func TestLocalSigner_SignTx(t *testing.T) {
	s, err := NewLocal(hardhatKey0)
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{Nonce: 3, GasPrice: big.NewInt(1), Gas: 21_000, Value: big.NewInt(0)})
	signed, err := s.SignTx(context.Background(), tx, big.NewInt(97))
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(97)), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
	assert.Equal(t, big.NewInt(97), signed.ChainId())
}

func TestOptions_KeyFor(t *testing.T) {
	opts := Options{PrivateKey: "main"}
	assert.Equal(t, "main", opts.KeyFor(true))
	assert.Equal(t, "main", opts.KeyFor(false))

	opts.TestPrivateKey = "test"
	assert.Equal(t, "test", opts.KeyFor(true))
	assert.Equal(t, "main", opts.KeyFor(false))

	assert.Empty(t, Options{TestPrivateKey: "test"}.KeyFor(false))
}

func TestProvider_ForNetwork(t *testing.T) {
	testnet := network.Profile{ID: "bscTestnet", Testnet: true}
	mainnet := network.Profile{ID: "bscMainnet"}

	t.Run("testnet uses test key", func(t *testing.T) {
		p := NewProvider(Options{PrivateKey: hardhatKey0, TestPrivateKey: hardhatKey1})
		s, err := p.ForNetwork(context.Background(), testnet)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, common.HexToAddress(hardhatAccount1), s.Address())
	})

	t.Run("mainnet uses main key", func(t *testing.T) {
		p := NewProvider(Options{PrivateKey: hardhatKey0, TestPrivateKey: hardhatKey1})
		s, err := p.ForNetwork(context.Background(), mainnet)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, common.HexToAddress(hardhatAccount0), s.Address())
	})

	t.Run("nothing configured", func(t *testing.T) {
		p := NewProvider(Options{TestPrivateKey: hardhatKey1})
		_, err := p.ForNetwork(context.Background(), mainnet)
		assert.ErrorIs(t, err, failure.ErrSignerUnavailable)
		assert.ErrorIs(t, err, failure.ErrConfiguration)
	})

	t.Run("dev node signs for its first account", func(t *testing.T) {
		key, err := crypto.HexToECDSA(hardhatKey1)
		require.NoError(t, err)
		srv := signerServer(t, key, "", false)
		defer srv.Close()

		devNode := network.Profile{ID: "hardhat", Testnet: true, DevNode: true, RPCURL: srv.URL}
		p := NewProvider(Options{APIKey: "ignored"})
		s, err := p.ForNetwork(context.Background(), devNode)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, common.HexToAddress(hardhatAccount1), s.Address())
	})

	t.Run("configured endpoint wins over dev node", func(t *testing.T) {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hardhatKey0, "0x"))
		require.NoError(t, err)
		srv := signerServer(t, key, "secret", false)
		defer srv.Close()

		devNode := network.Profile{ID: "hardhat", Testnet: true, DevNode: true, RPCURL: "http://127.0.0.1:1"}
		p := NewProvider(Options{Endpoint: srv.URL, APIKey: "secret"})
		s, err := p.ForNetwork(context.Background(), devNode)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, common.HexToAddress(hardhatAccount0), s.Address())
	})

	t.Run("configured address without key", func(t *testing.T) {
		p := NewProvider(Options{Address: hardhatAccount1})
		addr, err := p.Operator(context.Background(), mainnet)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(hardhatAccount1), addr)
	})
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// signerServer answers eth_accounts and eth_signTransaction for key.
func signerServer(t *testing.T, key *ecdsa.PrivateKey, apiKey string, wrapRaw bool) *httptest.Server {
	t.Helper()
	address := crypto.PubkeyToAddress(key.PublicKey)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != apiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		switch req.Method {
		case "eth_accounts":
			result = []string{address.Hex()}
		case "eth_signTransaction":
			var args txArgs
			if err := json.Unmarshal(req.Params[0], &args); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			raw, err := signArgs(key, args)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if wrapRaw {
				result = map[string]string{"raw": hexutil.Encode(raw)}
			} else {
				result = hexutil.Encode(raw)
			}
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func signArgs(key *ecdsa.PrivateKey, args txArgs) ([]byte, error) {
	legacy := &types.LegacyTx{
		Nonce:    hexutil.MustDecodeUint64(args.Nonce),
		GasPrice: hexutil.MustDecodeBig(args.GasPrice),
		Gas:      hexutil.MustDecodeUint64(args.Gas),
		Value:    hexutil.MustDecodeBig(args.Value),
	}
	if args.To != nil {
		to := common.HexToAddress(*args.To)
		legacy.To = &to
	}
	if args.Data != "" {
		legacy.Data = hexutil.MustDecode(args.Data)
	}

	signed, err := types.SignTx(types.NewTx(legacy), types.LatestSignerForChainID(hexutil.MustDecodeBig(args.ChainID)), key)
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

func TestRemoteSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(hardhatKey1)
	require.NoError(t, err)

	for _, wrapRaw := range []bool{false, true} {
		name := "hex result"
		if wrapRaw {
			name = "object result"
		}
		t.Run(name, func(t *testing.T) {
			srv := signerServer(t, key, "secret", wrapRaw)
			defer srv.Close()

			s, err := DialRemote(context.Background(), srv.URL, "secret", "")
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, common.HexToAddress(hardhatAccount1), s.Address())

			router := common.HexToAddress("0xD99D1c33F9fC3444f8101754aBC46c52416550D1")
			tx := types.NewTx(&types.LegacyTx{
				Nonce:    7,
				GasPrice: big.NewInt(10_000_000_000),
				Gas:      300_000,
				To:       &router,
				Value:    big.NewInt(1e17),
				Data:     []byte{0xf3, 0x05, 0xd7, 0x19},
			})

			signed, err := s.SignTx(context.Background(), tx, big.NewInt(97))
			require.NoError(t, err)
			assert.Equal(t, uint64(7), signed.Nonce())
			assert.Equal(t, &router, signed.To())
			assert.Equal(t, tx.Data(), signed.Data())
		})
	}
}

func TestRemoteSigner_RejectsWrongAPIKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	srv := signerServer(t, key, "secret", false)
	defer srv.Close()

	_, err = DialRemote(context.Background(), srv.URL, "wrong", "")
	assert.ErrorIs(t, err, failure.ErrSignerUnavailable)
}

func TestRemoteSigner_RejectsForeignSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	srv := signerServer(t, key, "", false)
	defer srv.Close()

	s, err := DialRemote(context.Background(), srv.URL, "", hardhatAccount0)
	require.NoError(t, err)
	defer s.Close()

	tx := types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(1), Gas: 21_000, Value: big.NewInt(0)})
	_, err = s.SignTx(context.Background(), tx, big.NewInt(97))
	assert.ErrorContains(t, err, "expected "+common.HexToAddress(hardhatAccount0).Hex())
}
