package config

import (
	"log"
	"reflect"

	"github.com/caarlos0/env/v6"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type Config struct {
	API struct {
		Port int `env:"PORT" envDefault:"8090"`
	}
	App struct {
		LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
		HistoryDB string `env:"HISTORY_DB"`
	}
	Chain struct {
		RPCURL      string           `env:"RPC_URL" envDefault:"https://api.devnet.solana.com"`
		WSURL       string           `env:"WS_URL" envDefault:"wss://api.devnet.solana.com"`
		ProgramID   solana.PublicKey `env:"PROGRAM_ID"`
		FeeReceiver solana.PublicKey `env:"FEE_RECEIVER"`
		// Fee percentage with two decimal places, e.g. "0.25" for 0.25%.
		FeePercent decimal.Decimal `env:"FEE_PERCENT" envDefault:"0.25"`
	}
}

func Load() Config {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(solana.PublicKey{}): func(v string) (interface{}, error) {
			return solana.PublicKeyFromBase58(v)
		},
		reflect.TypeOf(decimal.Decimal{}): func(v string) (interface{}, error) {
			return decimal.NewFromString(v)
		},
	}); err != nil {
		log.Panicf("config parsing failed: %+v", err)
	}
	return c
}
