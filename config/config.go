// Package config is the bridge process's static bootstrap
// configuration: which chain this process represents, where its Redis
// snapshot store and HTTP introspection server listen, the operator
// wallet used to drive adapters/evmtoken, and the seed data (routes,
// treasury tokens, committee participation threshold) it loads at
// startup.
//
// Shape and the yaml.v2 + envconfig layering keep config/config.go and
// config/init.go close to verbatim: the nested struct-of-structs
// layout, the package-level Config variable, and the file-then-env
// two-pass Init() are all the teacher's.
package config

// Configuration is the root of config.yml / environment overrides.
type Configuration struct {
	Server struct {
		HTTPAddr  string `yaml:"http_addr"`
		RedisPort int    `yaml:"redis_port"`
		RedisHost string `yaml:"redis_host"`
	} `yaml:"server"`

	Home struct {
		ChainID uint8 `yaml:"chain_id"`
	} `yaml:"home"`

	EVM struct {
		PublicAddress string `yaml:"address"`
		PrivateKey    string `yaml:"private_key"`
	} `yaml:"EVM"`

	Committee struct {
		MinParticipationBps uint32 `yaml:"min_participation_bps"`
	} `yaml:"committee"`
}

// Config is the process-wide loaded configuration, populated by Init.
var Config Configuration

// EVM_RETRIES is a retry count for EVM transactions. No package reads
// it: evmtoken.WithClient tries every endpoint in its list, and
// evmtoken.Wallet.Retries sets the number of transaction attempts.
const EVM_RETRIES = 3

// ChainConfig describes one foreign EVM-compatible chain's RPC/contract
// wiring (spec.md §3.1's chain ids, generalized from the teacher's
// single hardcoded WBGL contract to one contract address per token type
// on that chain).
type ChainConfig struct {
	Name            string
	ChainID         int64
	RPCList         []string
	ContractsByType map[string]string // token type name -> ERC-20 contract address
}

// EVMChains is the static registry of foreign chains this process can
// dial out to. Init does not populate it; devnets/tests assign into it
// directly, mirroring the teacher's package-level map variable.
var EVMChains = map[uint8]ChainConfig{}

// RouteLimitSeed is one entry of the limiter's starting route caps
// (spec.md §4.5 update_route_limit's initial state).
type RouteLimitSeed struct {
	SourceChainID      uint8  `yaml:"source_chain_id"`
	DestinationChainID uint8  `yaml:"destination_chain_id"`
	LimitUSD8dp        uint64 `yaml:"limit_usd_8dp"`
}

// TokenSeed is one entry of the treasury's starting token registry.
type TokenSeed struct {
	TypeName            string `yaml:"type_name"`
	TokenID             uint8  `yaml:"token_id"`
	Decimals            uint8  `yaml:"decimals"`
	NotionalValueUSD8dp uint64 `yaml:"notional_value_usd_8dp"`
	Native              bool   `yaml:"native"`
}

// Seed is the bootstrap data config.yml carries beyond Configuration's
// process-level settings (spec.md §3's committee/treasury/limiter
// initial state).
type Seed struct {
	RouteLimits []RouteLimitSeed `yaml:"route_limits"`
	Tokens      []TokenSeed      `yaml:"tokens"`
}

// SeedData is populated by Init alongside Config.
var SeedData Seed
