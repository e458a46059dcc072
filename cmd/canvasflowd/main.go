// canvasflowd serves application bundles: it loads component trees into
// a runtime registry, keeps them synchronized with the bundle directory,
// and exposes the server-side rendering endpoint that executes
// SSR-eligible handlers and emits hydration payloads.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/canvasflow/canvasflow-go/bus"
	"github.com/canvasflow/canvasflow-go/loader"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	bundleDir  = flag.String("bundles", "", "Bundle directory (overrides config)")
	httpAddr   = flag.String("addr", "", "HTTP listen address (overrides config)")
)

func main() {
	flag.Parse()

	// .env is optional; absence is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("loading .env: %v", err)
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *bundleDir != "" {
		config.Bundles.Dir = *bundleDir
	}
	if *httpAddr != "" {
		config.HTTP.Addr = *httpAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, config.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	eventBus := bus.New()
	registry := runtime.New(eventBus, store)

	if config.Bundles.Watch {
		watcher, err := loader.NewWatcher(config.Bundles.Dir, registry)
		if err != nil {
			log.Fatalf("loader: %v", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("loader: watcher stopped: %v", err)
			}
		}()
	} else {
		apps, err := loader.LoadDir(config.Bundles.Dir)
		if err != nil {
			log.Fatalf("loader: %v", err)
		}
		registry.SetApplications(apps)
	}

	log.Printf("canvasflowd serving %d application(s) on %s", len(registry.Applications()), config.HTTP.Addr)
	if err := serve(ctx, config.HTTP.Addr, registry); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildStore constructs the configured variable store. The memory
// backend returns a plain store; everything else wraps it in a
// persistent store restored from the backend.
func buildStore(ctx context.Context, config storeConfig) (runtime.VariableStore, func(), error) {
	noop := func() {}
	switch config.Backend {
	case "", "memory":
		return vars.NewStore(), noop, nil
	case "file":
		return persistent(ctx, vars.NewFileBackend(config.Path))
	case "bolt":
		backend, err := vars.NewBoltBackend(config.Path)
		if err != nil {
			return nil, noop, err
		}
		return persistent(ctx, backend)
	case "redis":
		backend, err := vars.NewRedisBackend(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return persistent(ctx, backend)
	case "postgres":
		backend, err := vars.NewPostgresBackend(ctx, vars.PostgresConfig{
			DSN:          config.PostgresDSN,
			RunMigration: config.Migrate,
		})
		if err != nil {
			return nil, noop, err
		}
		return persistent(ctx, backend)
	default:
		return nil, noop, errUnknownBackend(config.Backend)
	}
}

func persistent(ctx context.Context, backend vars.Backend) (runtime.VariableStore, func(), error) {
	store, err := vars.NewPersistentStore(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, func() {}, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("closing store: %v", err)
		}
	}, nil
}

type errUnknownBackend string

func (e errUnknownBackend) Error() string {
	return "unknown store backend: " + string(e) + " (must be memory, file, bolt, redis, or postgres)"
}
