package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/portfolio-copilot/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	dispatchx "github.com/tanpawarit/portfolio-copilot/agent/dispatch"
	llmx "github.com/tanpawarit/portfolio-copilot/agent/llm"
	portfoliox "github.com/tanpawarit/portfolio-copilot/agent/portfolio"
	statex "github.com/tanpawarit/portfolio-copilot/agent/state"
	configx "github.com/tanpawarit/portfolio-copilot/pkg/config"
	_ "github.com/tanpawarit/portfolio-copilot/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/portfolio-copilot/pkg/qstash"
)

type AppConfig struct {
	PrincipalID string `envconfig:"PRINCIPAL_ID" split_words:"true" default:"demo-user"`
	SessionID   string `envconfig:"SESSION_ID" split_words:"true"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	sessionCfg := configx.MustNew[statex.Config]("SESSION")
	dispatchCfg := configx.MustNew[dispatchx.Config]("DISPATCH")
	dbCfg := configx.MustNew[portfoliox.DBConfig]("PORTFOLIO_DB")
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")

	repo, closeRepo, err := openRepository(*dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open portfolio repository")
	}
	defer closeRepo()

	portfolioSvc, err := portfoliox.NewService(repo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build portfolio service")
	}

	decider, err := llmx.NewDecider(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize decider")
	}

	store, err := statex.NewMemoryStoreFromConfig(*sessionCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}

	deps := orchestratorx.Deps{
		Decider:    decider,
		Store:      store,
		Dispatcher: dispatchx.New(*dispatchCfg),
		Portfolio:  portfolioSvc,
	}
	if qstashCfg.Enabled() {
		deps.Publisher = qstashx.MustNew(*qstashCfg)
	}

	copilot, err := orchestratorx.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	principal := contractx.Principal{UserID: appCfg.PrincipalID}
	fmt.Printf("portfolio copilot ready for %s (empty line or ctrl-d to quit)\n", principal.UserID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			break
		}

		resp, err := copilot.Chat(ctx, contractx.ChatRequest{
			Principal: principal,
			SessionID: appCfg.SessionID,
			Query:     query,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		fmt.Println(resp.Answer)
		for _, call := range resp.IssuedCalls {
			fmt.Printf("  · %s\n", call.Name)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read stdin")
	}
}

// openRepository uses Postgres when a DSN is configured and the seeded demo book otherwise.
func openRepository(cfg portfoliox.DBConfig) (portfoliox.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		log.Info().Msg("PORTFOLIO_DB_DSN not set, using demo portfolio")
		return seedDemo(), func() {}, nil
	}

	db, err := portfoliox.OpenDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return portfoliox.NewBunRepository(db), func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("close portfolio db")
		}
	}, nil
}
