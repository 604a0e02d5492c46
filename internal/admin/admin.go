// Package admin exposes a small operational HTTP surface next to the banking
// listener: a public health check and a token-protected stats endpoint.
package admin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// Stats reports a point-in-time view of the running server.
type Stats struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
	Connections    int    `json:"connections"`
	Accounts       int    `json:"accounts"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
}

// StatsSource provides the live numbers for the stats endpoint.
type StatsSource interface {
	ActiveSessions() int
	Connections() int
	Accounts() int
}

type API struct {
	source  StatsSource
	started time.Time
}

func New(source StatsSource) *API {
	return &API{source: source, started: time.Now()}
}

// Router builds the admin HTTP handler.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/stats", a.getStats)
	})

	return r
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Stats{
		Status:         "healthy",
		ActiveSessions: a.source.ActiveSessions(),
		Connections:    a.source.Connections(),
		Accounts:       a.source.Accounts(),
		UptimeSeconds:  int64(time.Since(a.started).Seconds()),
	})
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		if err := validateToken(parts[1]); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// MintToken issues a short-lived bearer token for the protected endpoints.
func MintToken(subject string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
