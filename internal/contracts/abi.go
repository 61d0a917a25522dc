// Package contracts holds the ABIs of every contract popbatch talks to and
// packs call data for them.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ERC20 is the subset of IERC20 used for balance, allowance and approval.
const erc20JSON = `[
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// L1StandardBridge of the OP Stack.
const l1StandardBridgeJSON = `[
	{"inputs":[
		{"name":"_localToken","type":"address"},
		{"name":"_remoteToken","type":"address"},
		{"name":"_to","type":"address"},
		{"name":"_amount","type":"uint256"},
		{"name":"_minGasLimit","type":"uint32"},
		{"name":"_extraData","type":"bytes"}
	],"name":"bridgeERC20To","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"name":"_to","type":"address"},
		{"name":"_minGasLimit","type":"uint32"},
		{"name":"_extraData","type":"bytes"}
	],"name":"depositETHTo","outputs":[],"stateMutability":"payable","type":"function"}
]`

// Algebra v1 SwapRouter (kim.exchange on Mode).
const swapRouterJSON = `[
	{"inputs":[{"components":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMinimum","type":"uint256"},
		{"name":"limitSqrtPrice","type":"uint160"}
	],"name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"},
	{"inputs":[{"components":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"amountOut","type":"uint256"},
		{"name":"amountInMaximum","type":"uint256"},
		{"name":"limitSqrtPrice","type":"uint160"}
	],"name":"params","type":"tuple"}],"name":"exactOutputSingle","outputs":[{"name":"amountIn","type":"uint256"}],"stateMutability":"payable","type":"function"},
	{"inputs":[{"components":[
		{"name":"path","type":"bytes"},
		{"name":"recipient","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"amountIn","type":"uint256"},
		{"name":"amountOutMinimum","type":"uint256"}
	],"name":"params","type":"tuple"}],"name":"exactInput","outputs":[{"name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

// SimpleAccount (ERC-4337 v0.7 sample account).
const simpleAccountJSON = `[
	{"inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"name":"execute","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"dest","type":"address[]"},{"name":"value","type":"uint256[]"},{"name":"func","type":"bytes[]"}],"name":"executeBatch","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const simpleAccountFactoryJSON = `[
	{"inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"name":"createAccount","outputs":[{"name":"ret","type":"address"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"name":"getAddress","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const entryPointJSON = `[
	{"inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"name":"getNonce","outputs":[{"name":"nonce","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Parsed ABIs.
var (
	ERC20ABI                = mustParse(erc20JSON)
	L1StandardBridgeABI     = mustParse(l1StandardBridgeJSON)
	SwapRouterABI           = mustParse(swapRouterJSON)
	SimpleAccountABI        = mustParse(simpleAccountJSON)
	SimpleAccountFactoryABI = mustParse(simpleAccountFactoryJSON)
	EntryPointABI           = mustParse(entryPointJSON)
)

// known lists every ABI Decode searches, in lookup order.
var known = []struct {
	name string
	abi  abi.ABI
}{
	{"ERC20", ERC20ABI},
	{"L1StandardBridge", L1StandardBridgeABI},
	{"SwapRouter", SwapRouterABI},
	{"SimpleAccount", SimpleAccountABI},
	{"SimpleAccountFactory", SimpleAccountFactoryABI},
	{"EntryPoint", EntryPointABI},
}

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: invalid ABI: " + err.Error())
	}
	return parsed
}
