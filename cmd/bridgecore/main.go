// Command bridgecore is a demo/dev entrypoint: it loads config.yml, seeds
// the treasury and limiter from it, and serves the read-only
// introspection HTTP API until signaled to stop. The committee starts
// empty (no validators are seeded), and no Redis snapshot is restored.
//
// The dated log file, config.Init() call, and "print the loaded config
// then block on a worker" shape are cmd/server/main.go kept close to
// verbatim, generalized from five scan/execution goroutines down to the
// one HTTP-serving goroutine this module's Non-goals leave in scope.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starcoin-bridge/bridgecore/bridge"
	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/committee"
	"github.com/starcoin-bridge/bridgecore/config"
	"github.com/starcoin-bridge/bridgecore/events"
	"github.com/starcoin-bridge/bridgecore/httpapi"
	"github.com/starcoin-bridge/bridgecore/limiter"
	"github.com/starcoin-bridge/bridgecore/treasury"
)

func main() {
	log.Print("Starting bridgecore")

	f, err := os.OpenFile(fmt.Sprintf("logs/log_%s.txt", time.Now().Format("2006-01-02")), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file for writing: %v", err)
	}
	defer f.Close()
	log.SetOutput(f)

	configPath := "config.yml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config.Init(configPath)
	fmt.Printf("%+v\n", config.Config)

	homeChainID := chainid.ID(config.Config.Home.ChainID)
	if err := chainid.AssertValidChainID(homeChainID); err != nil {
		log.Fatalf("invalid home.chain_id in config: %v", err)
	}

	validators := committee.NewStaticValidatorSet(nil)
	comReg := committee.New(validators)

	treReg := treasury.NewRegistry()
	for _, t := range config.SeedData.Tokens {
		if t.Native {
			if _, err := treReg.RegisterNativeToken(t.TypeName, t.TokenID, t.Decimals, t.NotionalValueUSD8dp, noopMintCap{}, noopBurnCap{}, 0); err != nil {
				log.Printf("warning: failed to seed native token %s: %v", t.TypeName, err)
			}
			continue
		}
		if err := treReg.RegisterForeignToken(t.TypeName, t.Decimals, noopMintCap{}, noopBurnCap{}, 0); err != nil {
			log.Printf("warning: failed to seed foreign token %s: %v", t.TypeName, err)
			continue
		}
		if _, err := treReg.AddNewToken(t.TypeName, t.TokenID, t.NotionalValueUSD8dp); err != nil {
			log.Printf("warning: failed to promote foreign token %s: %v", t.TypeName, err)
		}
	}

	lim := limiter.New()
	for _, rl := range config.SeedData.RouteLimits {
		route, err := chainid.GetRoute(chainid.ID(rl.SourceChainID), chainid.ID(rl.DestinationChainID))
		if err != nil {
			log.Printf("warning: skipping route limit seed for invalid route %d->%d: %v", rl.SourceChainID, rl.DestinationChainID, err)
			continue
		}
		lim.UpdateRouteLimit(route, rl.LimitUSD8dp)
	}

	sink := events.NewMemorySink()
	b := bridge.New(homeChainID, comReg, treReg, lim, sink)

	srv := httpapi.New(homeChainID, b, comReg, lim)
	addr := config.Config.Server.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("HTTP introspection service listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("error listening: %s", err)
		}
	}()

	<-done
	log.Print("bridgecore stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP service shutdown error: %+v", err)
	}
	log.Print("bridgecore stopped")
}

// noopMintCap/noopBurnCap seed tokens whose real capability is wired in
// by an operator-specific adapters/evmtoken.Capability once the
// deployment's contract addresses and signing key are known; this demo
// entrypoint has neither.
type noopMintCap struct{}

func (noopMintCap) Mint(amount uint64) (treasury.Token, error) {
	return treasury.Token{}, fmt.Errorf("bridgecore: no mint capability wired for this deployment")
}

type noopBurnCap struct{}

func (noopBurnCap) Burn(token treasury.Token) error {
	return fmt.Errorf("bridgecore: no burn capability wired for this deployment")
}
