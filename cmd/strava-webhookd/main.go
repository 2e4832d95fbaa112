// strava-webhookd is a small daemon wiring the Strava client together: it
// answers webhook callback validation, receives push events, and completes
// the OAuth authorization-code flow, persisting tokens in redis.
package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fitwire/strava-client/pkg/client"
	"github.com/fitwire/strava-client/pkg/logging"
	"github.com/fitwire/strava-client/pkg/session"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")

	cfg := session.Config{
		ClientID:            os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret:        os.Getenv("STRAVA_CLIENT_SECRET"),
		RedirectURI:         os.Getenv("STRAVA_REDIRECT_URI"),
		WebhookCallbackURL:  os.Getenv("STRAVA_WEBHOOK_CALLBACK_URL"),
		WebhookVerifyToken:  getEnv("STRAVA_WEBHOOK_VERIFY_TOKEN", client.DefaultVerifyToken),
		DefaultAthleteID:    getEnvInt64("STRAVA_DEFAULT_ATHLETE_ID", 0),
		DefaultRefreshToken: os.Getenv("STRAVA_DEFAULT_REFRESH_TOKEN"),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Fatal().Msg("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET are required")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to redis")

	stravaClient, err := client.New(client.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Strava client")
	}

	store := session.NewRedisStore(redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /webhook", webhookValidationHandler(cfg, store, stravaClient, logger))
	mux.HandleFunc("POST /webhook", webhookEventHandler(logger))
	mux.HandleFunc("GET /oauth/login", oauthLoginHandler(cfg, logger))
	mux.HandleFunc("GET /oauth/callback", oauthCallbackHandler(cfg, store, stravaClient, logger))

	addr := ":" + port
	logger.Info().Str("addr", addr).Msg("Starting strava-webhookd")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// webhookValidationHandler answers the subscription validation GET Strava
// sends with hub.mode, hub.challenge and hub.verify_token parameters.
func webhookValidationHandler(cfg session.Config, store session.Store, cl *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		manager := session.NewManager(cfg, store, cl, cfg.DefaultAthleteID)

		challenge, err := manager.ValidateWebhookSubscription(
			q.Get("hub.mode"), q.Get("hub.challenge"), q.Get("hub.verify_token"))
		if err != nil {
			logger.Warn().Err(err).Msg("Webhook validation rejected")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(challenge)
	}
}

// webhookEventHandler logs incoming push events. Strava expects a 200
// within two seconds; processing beyond logging is out of scope here.
func webhookEventHandler(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		logger.Info().RawJSON("event", body).Msg("Webhook event received")
		w.WriteHeader(http.StatusOK)
	}
}

// oauthLoginHandler redirects the user to the Strava authorization page.
func oauthLoginHandler(cfg session.Config, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := cfg.AuthorizationURL(client.AuthorizationURLOptions{
			Scopes: []client.Scope{client.ScopeRead, client.ScopeActivityReadAll},
			State:  uuid.New().String(),
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to build authorization URL")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// oauthCallbackHandler completes the authorization-code exchange and
// persists the athlete's auth record.
func oauthCallbackHandler(cfg session.Config, store session.Store, cl *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		manager, err := session.Exchange(ctx, cfg, store, cl, code, client.SplitScopes(q.Get("scope")))
		if err != nil {
			logger.Error().Err(err).Msg("Token exchange failed")
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			return
		}

		logger.Info().Int64("athlete_id", manager.AthleteID()).Msg("Athlete authorized")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"athlete_id": manager.AthleteID()})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
