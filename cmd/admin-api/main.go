package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"aexfy.org/internal/approval"
	"aexfy.org/internal/audit"
	"aexfy.org/internal/httpapi"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/obs"
	"aexfy.org/internal/provisioning"
	"aexfy.org/internal/rbac"
	"aexfy.org/internal/session"
	"aexfy.org/internal/store/pg"
	redisstore "aexfy.org/internal/store/redis"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("AEXFY_PG_DSN")
	if dsn == "" {
		log.Fatal("missing AEXFY_PG_DSN")
	}
	jwtSecret := os.Getenv("AEXFY_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("missing AEXFY_JWT_SECRET")
	}
	provURL := os.Getenv("AEXFY_PROVISIONER_URL")
	provKey := os.Getenv("AEXFY_PROVISIONER_KEY")
	if provURL == "" || provKey == "" {
		log.Fatal("missing AEXFY_PROVISIONER_URL or AEXFY_PROVISIONER_KEY")
	}
	httpAddr := envOr("AEXFY_HTTP_ADDR", ":8080")
	grpcAddr := envOr("AEXFY_GRPC_ADDR", ":9090")

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	// Sessions live in Redis when an address is configured; otherwise the
	// relational store carries them.
	var sessions identity.SessionStore = store.Sessions()
	var rdb *goredis.Client
	if addr := os.Getenv("AEXFY_REDIS_ADDR"); addr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: addr})
		redisSessions, err := redisstore.NewSessionStore(rdb, 0)
		if err != nil {
			log.Fatalf("redis session store: %v", err)
		}
		sessions = redisSessions
	}

	// Audit events always land in postgres; AEXFY_AUDIT_STDOUT mirrors them
	// onto the JSON log stream.
	var sink audit.Sink = store
	if v := os.Getenv("AEXFY_AUDIT_STDOUT"); v == "1" || v == "true" {
		sink = audit.MultiSink{store, audit.LogSink{}}
	}
	recorder := audit.NewDispatcher(sink, 256)
	defer recorder.Close()

	tokens, err := session.NewTokenManager(jwtSecret)
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}
	catalog := rbac.NewCatalog()
	resolver := rbac.NewResolver(catalog)
	zones := rbac.NewZonePolicy()

	guard, err := session.NewGuard(tokens, store, sessions, zones, recorder)
	if err != nil {
		log.Fatalf("session guard: %v", err)
	}
	provisioner, err := provisioning.NewClient(provURL, provKey)
	if err != nil {
		log.Fatalf("provisioning client: %v", err)
	}
	workflow, err := approval.NewWorkflow(resolver, zones, store, store, provisioner, recorder)
	if err != nil {
		log.Fatalf("approval workflow: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api := httpapi.New(guard, workflow, resolver, zones, store, store, probe, version)

	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), 1<<20),
						40, 20)))))

	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := httpapi.NewGRPCServer(probe)
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("Starting aexfy-admin-api %s on %s (grpc %s)", version, httpAddr, grpcAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Println("Stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
