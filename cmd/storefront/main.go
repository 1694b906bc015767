// Command storefront drives a shopping session against the Order API: cart
// editing, the checkout steps, placement, payment confirmation and delivery.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/order"
	"github.com/fjod/storefront/internal/orderapi"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func realMain(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sessionID := fs.String("session", os.Getenv("STOREFRONT_SESSION"), "shopping session id")
	userID := fs.String("user", os.Getenv("STOREFRONT_USER"), "user id sent to the Order API")
	admin := fs.Bool("admin", false, "act as an administrator")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if *sessionID == "" {
		*sessionID = "default"
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, rdb, domain.Actor{UserID: *userID, IsAdmin: *admin}, *sessionID, log, stdin, stdout)
	if err := a.run(ctx, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(cfg *config.Config, rdb *redis.Client, actor domain.Actor, sessionID string, log *zap.Logger, in io.Reader, out io.Writer) *app {
	calc := pricing.NewCalculator(cfg.Pricing)
	api := orderapi.New(cfg.OrderAPIURL,
		orderapi.WithActor(actor),
		orderapi.WithLogger(log.Named("orderapi")))

	return &app{
		sessions:  cart.NewSessions(cache.NewRedisCache(rdb, cfg.SessionTTL), calc, api, log.Named("cart")),
		api:       api,
		lifecycle: order.NewLifecycle(api, api, calc, log.Named("order")),
		actor:     actor,
		sessionID: sessionID,
		in:        in,
		out:       out,
	}
}
