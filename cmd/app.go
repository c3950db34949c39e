package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/ai"
	"github.com/sw33tLie/metropolis/pkg/events"
	"github.com/sw33tLie/metropolis/pkg/export"
	"github.com/sw33tLie/metropolis/pkg/maps"
	"github.com/sw33tLie/metropolis/pkg/planner"
	"github.com/sw33tLie/metropolis/pkg/storage"
	"github.com/sw33tLie/metropolis/pkg/whttp"
)

// app holds the components every command works with.
type app struct {
	store    storage.Store
	planner  *planner.Planner
	resolver *maps.Resolver
	routes   *maps.RouteBuilder
	ics      export.ICSEncoder
	pdf      export.PDFEncoder
}

// newApp opens the configured store and map providers. The planner, which
// needs the events and model credentials, is only built when withPlanner is set.
func newApp(ctx context.Context, cmd *cobra.Command, withPlanner bool) (*app, error) {
	proxy, err := proxyFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{
		store: store,
		pdf:   export.PDFEncoder{PublicURL: viper.GetString("server.public_url")},
	}
	a.resolver, a.routes = newMaps(proxy)

	if withPlanner {
		source := newEventSource(proxy)
		synth, err := newSynthesizer(ctx, proxy)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.planner = planner.New(planner.Config{Source: source, Synthesizer: synth, Store: store, Log: utils.Log})
	}
	return a, nil
}

func newEventSource(proxy *url.URL) events.Source {
	if viper.GetString("events.api_key") == "" {
		utils.Log.Warn("No SerpAPI key configured (SERPAPI_KEY); event searches will return nothing.")
	}
	return events.NewSerpAPI(events.SerpAPIConfig{
		APIKey:      viper.GetString("events.api_key"),
		Endpoint:    viper.GetString("events.endpoint"),
		MaxResults:  viper.GetInt("events.max_results"),
		DateInQuery: viper.GetBool("events.date_in_query"),
		HTTPClient: whttp.NewClient(whttp.Options{
			Timeout: viper.GetDuration("events.timeout"),
			Retries: 0,
			Logger:  utils.LeveledLogger{Logger: utils.Log},
			Proxy:   proxy,
		}),
		Log: utils.Log,
	})
}

func newSynthesizer(ctx context.Context, proxy *url.URL) (ai.Synthesizer, error) {
	timeout := viper.GetDuration("ai.timeout")
	client := &http.Client{Timeout: timeout}
	if proxy != nil {
		client.Transport = whttp.ProxyTransport(proxy)
	}
	synth, err := ai.NewSynthesizer(ctx, ai.Config{
		Provider:    viper.GetString("ai.provider"),
		APIKey:      viper.GetString("ai.api_key"),
		Model:       viper.GetString("ai.model"),
		Endpoint:    viper.GetString("ai.endpoint"),
		Temperature: float32(viper.GetFloat64("ai.temperature")),
		Timeout:     timeout,
		HTTPClient:  client,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up itinerary synthesizer: %w", err)
	}
	return synth, nil
}

func newMaps(proxy *url.URL) (*maps.Resolver, *maps.RouteBuilder) {
	var (
		geocoder   maps.Geocoder
		directions maps.DirectionsProvider
	)
	if key := viper.GetString("maps.api_key"); key != "" {
		cfg := maps.GoogleConfig{
			APIKey: key,
			HTTPClient: whttp.NewClient(whttp.Options{
				Timeout: viper.GetDuration("maps.timeout"),
				Retries: viper.GetInt("maps.retries"),
				Logger:  utils.LeveledLogger{Logger: utils.Log},
				Proxy:   proxy,
			}),
		}
		geocoder = maps.NewGoogleGeocoder(cfg)
		directions = maps.NewGoogleDirections(cfg)
	} else {
		utils.Log.Info("No Google Maps key configured (GOOGLE_MAPS_API_KEY); map endpoints will return unresolved locations.")
	}
	resolver := maps.NewResolver(geocoder, viper.GetDuration("maps.cache_ttl"), utils.Log)
	return resolver, maps.NewRouteBuilder(resolver, directions, utils.Log)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		utils.Log.Warnf("Closing store: %v", err)
	}
}

func openStore(ctx context.Context) (storage.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(viper.GetString("store.backend")))
	switch backend {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := storage.OpenSQLite(viper.GetString("store.sqlite.path"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case "redis":
		store, err := storage.OpenRedis(ctx, storage.RedisConfig{
			Addr:     viper.GetString("store.redis.addr"),
			Password: viper.GetString("store.redis.password"),
			DB:       viper.GetInt("store.redis.db"),
			TTL:      viper.GetDuration("store.redis.ttl"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "mongo", "mongodb":
		uri := viper.GetString("store.mongo.uri")
		if uri == "" {
			return nil, fmt.Errorf("store.mongo.uri is required for the mongo store")
		}
		store, err := storage.OpenMongo(ctx, storage.MongoConfig{
			URI:      uri,
			Database: viper.GetString("store.mongo.database"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (available: memory, sqlite, redis, mongo)", backend)
	}
}

func proxyFromFlags(cmd *cobra.Command) (*url.URL, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	if proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL: %s", proxy)
	}
	return u, nil
}
