// Package chains holds the static table of supported networks and the
// contract deployments on them.
package chains

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum-optimism/optimism/op-core/predeploys"
	"github.com/ethereum/go-ethereum/common"
)

// Environment selects a set of networks.
type Environment string

const (
	Testnet Environment = "testnet"
	Mainnet Environment = "mainnet"
)

// Well-known chain IDs.
const (
	SepoliaID     uint64 = 11155111
	ModeTestnetID uint64 = 919
	EthereumID    uint64 = 1
	ModeID        uint64 = 34443
	HedwigID      uint64 = 150150
)

// DefaultAPIURL is the hosted API base.
const DefaultAPIURL = "https://api.owl.build"

var (
	// EntryPointV07 is the ERC-4337 EntryPoint, deployed at the same
	// address on every chain.
	EntryPointV07 = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	// SimpleAccountFactory deploys SimpleAccount instances for EntryPoint v0.7.
	SimpleAccountFactory = common.HexToAddress("0xe7A78BA9be87103C317a66EF78e6085BD74Dd538")
)

// ErrUnknownNetwork is returned for chain IDs or environments not in the table.
var ErrUnknownNetwork = errors.New("popbatch: unknown network")

// Network is one chain.
type Network struct {
	ChainID  uint64 `json:"chain_id"`
	Name     string `json:"name"`
	Explorer string `json:"explorer"`
	// L1 is true for the settlement side of a bridge pair.
	L1 bool `json:"l1"`
}

// AddressURL links to addr on the network's explorer.
func (n Network) AddressURL(addr common.Address) string {
	return fmt.Sprintf("%s/address/%s", n.Explorer, addr.Hex())
}

// TxURL links to a transaction on the network's explorer.
func (n Network) TxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", n.Explorer, hash.Hex())
}

// Deployment is the pair of chains and contracts an environment bridges
// and swaps across.
type Deployment struct {
	Environment      Environment    `json:"environment"`
	L1               Network        `json:"l1"`
	L2               Network        `json:"l2"`
	L1StandardBridge common.Address `json:"l1_standard_bridge"`
	USDCL1           common.Address `json:"usdc_l1"`
	USDCL2           common.Address `json:"usdc_l2"`
	WETHL2           common.Address `json:"weth_l2"`
	// SwapRouter is zero where no router is deployed.
	SwapRouter     common.Address `json:"swap_router"`
	AccountFactory common.Address `json:"account_factory"`
	EntryPoint     common.Address `json:"entry_point"`
}

var networks = map[uint64]Network{
	SepoliaID:     {ChainID: SepoliaID, Name: "Sepolia", Explorer: "https://sepolia.etherscan.io", L1: true},
	ModeTestnetID: {ChainID: ModeTestnetID, Name: "Mode Testnet", Explorer: "https://sepolia.explorer.mode.network"},
	EthereumID:    {ChainID: EthereumID, Name: "Ethereum", Explorer: "https://etherscan.io", L1: true},
	ModeID:        {ChainID: ModeID, Name: "Mode", Explorer: "https://explorer.mode.network"},
	HedwigID:      {ChainID: HedwigID, Name: "Hedwig Testnet", Explorer: "https://hedwig-testnet-explorer.owl.build"},
}

var deployments = map[Environment]Deployment{
	Testnet: {
		Environment:      Testnet,
		L1:               networks[SepoliaID],
		L2:               networks[ModeTestnetID],
		L1StandardBridge: common.HexToAddress("0xbC5C679879B2965296756CD959C3C739769995E2"),
		USDCL1:           common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
		USDCL2:           common.HexToAddress("0x514832A97F0b440567055A73fe03AA160017b990"),
		WETHL2:           predeploys.WETHAddr,
		AccountFactory:   SimpleAccountFactory,
		EntryPoint:       EntryPointV07,
	},
	Mainnet: {
		Environment:      Mainnet,
		L1:               networks[EthereumID],
		L2:               networks[ModeID],
		L1StandardBridge: common.HexToAddress("0x735aDBbE72226BD52e818E7181953f42E3b0FF21"),
		USDCL1:           common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		USDCL2:           common.HexToAddress("0xd988097fb8612cc24eeC14542bC03424c656005f"),
		WETHL2:           predeploys.WETHAddr,
		SwapRouter:       common.HexToAddress("0xAc48FcF1049668B285f3dC72483DF5Ae2162f7e8"),
		AccountFactory:   SimpleAccountFactory,
		EntryPoint:       EntryPointV07,
	},
}

// ParseEnvironment parses "testnet" or "mainnet", case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := deployments[env]; !ok {
		return "", fmt.Errorf("%w: environment %q", ErrUnknownNetwork, s)
	}
	return env, nil
}

// ForEnvironment returns the deployment for env.
func ForEnvironment(env Environment) (Deployment, error) {
	d, ok := deployments[env]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: environment %q", ErrUnknownNetwork, env)
	}
	return d, nil
}

// Lookup returns the network with chainID.
func Lookup(chainID uint64) (Network, error) {
	n, ok := networks[chainID]
	if !ok {
		return Network{}, fmt.Errorf("%w: chain %d", ErrUnknownNetwork, chainID)
	}
	return n, nil
}

// All returns every known network ordered by chain ID.
func All() []Network {
	out := make([]Network, 0, len(networks))
	for _, n := range networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Endpoints builds hosted RPC URLs for one API key.
type Endpoints struct {
	BaseURL string
	APIKey  string
}

// RPC returns the public JSON-RPC URL for chainID.
func (e Endpoints) RPC(chainID uint64) string {
	return e.build(chainID, "rpc")
}

// Bundler returns the ERC-4337 bundler URL for chainID.
func (e Endpoints) Bundler(chainID uint64) string {
	return e.build(chainID, "rpc")
}

// Paymaster returns the paymaster URL for chainID.
func (e Endpoints) Paymaster(chainID uint64) string {
	return e.build(chainID, "rpc")
}

func (e Endpoints) build(chainID uint64, path string) string {
	base := strings.TrimRight(e.BaseURL, "/")
	if base == "" {
		base = DefaultAPIURL
	}
	u := base + "/" + strconv.FormatUint(chainID, 10) + "/" + path
	if e.APIKey != "" {
		u += "?" + url.Values{"apikey": {e.APIKey}}.Encode()
	}
	return u
}
