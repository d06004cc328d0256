// ClearGate server: signed claim ingestion, the policy gate, the court-order
// registry, and the settlement rails behind one HTTP surface.
//
// main wires dependencies and owns the process lifecycle; business logic
// lives in the internal services.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/applier"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/internal/compliance"
	"github.com/kevanbtc/cleargate/internal/courtorder"
	"github.com/kevanbtc/cleargate/internal/custody"
	"github.com/kevanbtc/cleargate/internal/platform/config"
	"github.com/kevanbtc/cleargate/internal/platform/httpserver"
	"github.com/kevanbtc/cleargate/internal/platform/logger"
	"github.com/kevanbtc/cleargate/internal/platform/postgres"
	platformredis "github.com/kevanbtc/cleargate/internal/platform/redis"
	"github.com/kevanbtc/cleargate/internal/policy"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/internal/settlement"
	httptransport "github.com/kevanbtc/cleargate/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres-backed stores when configured, in-memory otherwise.
	var (
		profileStore  compliance.Store
		navStore      custody.Store
		transferStore settlement.StatusStore
		auditStore    audit.Store
		guard         replay.Guard
	)
	if cfg.PostgresURL != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		profileStore = compliance.NewPostgresStore(pool)
		navStore = custody.NewPostgresStore(pool)
		transferStore = settlement.NewPostgresStore(pool)
		auditStore = audit.NewPostgresStore(pool)
		guard = replay.NewPostgres(pool)
	} else {
		profileStore = compliance.NewInMemoryStore()
		navStore = custody.NewInMemoryStore()
		transferStore = settlement.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		guard = replay.NewInMemory()
	}

	// The Redis replay guard takes precedence when configured; it survives
	// restarts without needing the full Postgres stack.
	if cfg.RedisAddr != "" {
		client, err := platformredis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		guard = replay.NewRedis(client)
	}

	// Audit trail with optional Kafka fan-out.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	var sink *audit.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		sink, err = audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			return err
		}
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}
	auditor, err := audit.NewPublisher(auditStore, auditOpts...)
	if err != nil {
		return err
	}

	// Roles and signer allowlists from configuration.
	roles := rbac.NewAuthorizer()
	for _, grant := range cfg.RoleGrants {
		principal, roleName, ok := strings.Cut(grant, ":")
		if !ok {
			return fmt.Errorf("malformed role grant %q, want principal:ROLE", grant)
		}
		role, err := rbac.ParseRole(roleName)
		if err != nil {
			return err
		}
		roles.Grant(role, principal)
	}

	verifier := claims.NewVerifier(cfg.ChainID)
	for kind, addrs := range map[claims.Kind][]string{
		claims.KindAttestation: cfg.AttestationSigners,
		claims.KindNAVReport:   cfg.NAVSigners,
		claims.KindReceipt:     cfg.ReceiptSigners,
	} {
		for _, raw := range addrs {
			if !common.IsHexAddress(raw) {
				return fmt.Errorf("invalid %s signer address %q", kind, raw)
			}
			verifier.AuthorizeSigner(kind, common.HexToAddress(raw))
		}
	}

	applierMetrics := applier.NewMetrics()

	complianceSvc, err := compliance.NewService(profileStore, verifier, guard, roles, auditor, log, applierMetrics)
	if err != nil {
		return err
	}
	custodySvc, err := custody.NewService(navStore, verifier, guard, auditor, log, applierMetrics)
	if err != nil {
		return err
	}

	orders := courtorder.NewRegistry(roles, auditor, log)

	gate := policy.NewGate(profileStore, orders, roles,
		policy.WithAuditor(auditor),
		policy.WithLogger(log),
		policy.WithMetrics(policy.NewMetrics()),
	)

	rails := settlement.NewRegistry()
	settlementMetrics := settlement.NewMetrics()
	var firstRail *settlement.Service
	for _, key := range cfg.Rails {
		rail, err := settlement.NewService(key, transferStore, settlement.ExternalExecutor{},
			verifier, guard, roles, auditor, log,
			applierMetrics, settlement.WithMetrics(settlementMetrics))
		if err != nil {
			return err
		}
		if err := rails.Register(rail); err != nil {
			return err
		}
		if firstRail == nil {
			firstRail = rail
		}
	}

	controller, err := courtorder.NewController(orders, settlement.NewCourtLedger(firstRail), roles, auditor, log)
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(
		complianceSvc, custodySvc, gate, orders, controller,
		rails, verifier, roles, auditor, log,
	)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, cfg.JWTSigningKey))

	g, ctx := errgroup.WithContext(ctx)
	if sink != nil {
		g.Go(func() error { return sink.Run(ctx) })
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "chain_id", cfg.ChainID, "rails", cfg.Rails)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
