// Package network holds the static registry of supported networks.
package network

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var defaultNetworksYAML []byte

type (
	// Registry is a closed, read-only set of network profiles.
	Registry struct {
		profiles map[string]Profile
	}

	registryFile struct {
		Networks map[string]profileEntry `yaml:"networks"`
	}

	profileEntry struct {
		Name           string         `yaml:"name"`
		ChainID        uint64         `yaml:"chain-id"`
		RPCURL         string         `yaml:"rpc-url"`
		ExplorerURL    string         `yaml:"explorer-url"`
		Testnet        bool           `yaml:"testnet"`
		DevNode        bool           `yaml:"dev-node"`
		NativeCurrency NativeCurrency `yaml:"native-currency"`
		Addresses      struct {
			UpstreamToken string `yaml:"upstream-token"`
			Router        string `yaml:"router"`
			Factory       string `yaml:"factory"`
			WrappedNative string `yaml:"wrapped-native"`
			PriceFeed     string `yaml:"price-feed"`
		} `yaml:"addresses"`
		Gas struct {
			Price string `yaml:"price"`
			Limit uint64 `yaml:"limit"`
		} `yaml:"gas"`
		Deploy struct {
			Confirmations uint64        `yaml:"confirmations"`
			Timeout       time.Duration `yaml:"timeout"`
		} `yaml:"deploy"`
	}
)

// DefaultRegistry returns the registry compiled into the binary.
func DefaultRegistry() (*Registry, error) {
	return Parse(defaultNetworksYAML)
}

// Parse builds a registry from a YAML document with a top-level "networks" map.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode networks file: %w", err)
	}

	profiles := make([]Profile, 0, len(file.Networks))
	var errs []error
	for id, entry := range file.Networks {
		profile, err := entry.toProfile(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		profiles = append(profiles, profile)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return NewRegistry(profiles...)
}

// NewRegistry builds a registry from explicit profiles. Ids and chain ids must
// be unique.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	chainIDs := make(map[uint64]string, len(profiles))

	for _, p := range profiles {
		if p.ID == "" {
			return nil, errors.New("network profile without id")
		}
		if _, exists := r.profiles[p.ID]; exists {
			return nil, fmt.Errorf("duplicate network id %q", p.ID)
		}
		if other, exists := chainIDs[p.ChainID]; exists {
			return nil, fmt.Errorf("networks %q and %q share chain id %d", other, p.ID, p.ChainID)
		}
		chainIDs[p.ChainID] = p.ID
		r.profiles[p.ID] = p
	}

	return r, nil
}

// Resolve returns the profile for id.
func (r *Registry) Resolve(id string) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: '%s' (available: %s)", failure.ErrUnknownNetwork, id, strings.Join(r.List(), ", "))
	}
	return p, nil
}

// IsSupported reports whether id is a known network.
func (r *Registry) IsSupported(id string) bool {
	_, ok := r.profiles[id]
	return ok
}

// List returns the known network ids in sorted order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WithRPCOverrides returns a copy of the registry where the endpoints named in
// overrides (network id -> URL, ids matched case-insensitively) replace the
// profile defaults. Empty URLs are ignored.
func (r *Registry) WithRPCOverrides(overrides map[string]string) *Registry {
	out := &Registry{profiles: make(map[string]Profile, len(r.profiles))}
	for id, p := range r.profiles {
		for key, url := range overrides {
			if url != "" && strings.EqualFold(key, id) {
				p.RPCURL = url
			}
		}
		out.profiles[id] = p
	}
	return out
}

func (e profileEntry) toProfile(id string) (Profile, error) {
	var errs []error

	if e.ChainID == 0 {
		errs = append(errs, fmt.Errorf("networks.%s.chain-id is required", id))
	}
	if e.RPCURL == "" {
		errs = append(errs, fmt.Errorf("networks.%s.rpc-url is required", id))
	}

	parseAddr := func(field, value string) common.Address {
		if !common.IsHexAddress(value) {
			errs = append(errs, fmt.Errorf("networks.%s.addresses.%s is not a valid address: %q", id, field, value))
			return common.Address{}
		}
		return common.HexToAddress(value)
	}

	addresses := ContractAddressSet{
		UpstreamToken: parseAddr("upstream-token", e.Addresses.UpstreamToken),
		Router:        parseAddr("router", e.Addresses.Router),
		Factory:       parseAddr("factory", e.Addresses.Factory),
		WrappedNative: parseAddr("wrapped-native", e.Addresses.WrappedNative),
		PriceFeed:     parseAddr("price-feed", e.Addresses.PriceFeed),
	}

	var gasPrice *big.Int
	if e.Gas.Price != "" {
		price, ok := new(big.Int).SetString(e.Gas.Price, 10)
		if !ok {
			errs = append(errs, fmt.Errorf("networks.%s.gas.price is not a base-10 integer: %q", id, e.Gas.Price))
		}
		gasPrice = price
	}

	if len(errs) > 0 {
		return Profile{}, errors.Join(errs...)
	}

	return Profile{
		ID:             id,
		Name:           e.Name,
		ChainID:        e.ChainID,
		RPCURL:         e.RPCURL,
		ExplorerURL:    e.ExplorerURL,
		Testnet:        e.Testnet,
		DevNode:        e.DevNode,
		NativeCurrency: e.NativeCurrency,
		Addresses:      addresses,
		Gas: GasPolicy{
			Price: gasPrice,
			Limit: e.Gas.Limit,
		},
		Deploy: DeploySettings{
			Confirmations: e.Deploy.Confirmations,
			Timeout:       e.Deploy.Timeout,
		},
	}, nil
}
