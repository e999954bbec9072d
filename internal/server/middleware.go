package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/royalty/internal/metrics"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// RequestLogger logs one line per request and stores a request scoped logger in the context.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With("method", r.Method, "path", r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r.WithContext(log.WithContext(r.Context(), reqLogger)))

			level := log.InfoLevel
			if rec.Status() >= http.StatusInternalServerError {
				level = log.ErrorLevel
			}
			reqLogger.Log(level, "request", "status", rec.Status(), "bytes", rec.bytes, "duration", time.Since(start))
		})
	}
}

// Recover turns a panic into a 500 response.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("panic serving request", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
					WriteError(w, r, fmt.Errorf("panic: %v", v))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows browser clients from origins to call the API with a bearer token. No origins allows any.
func CORS(origins []string) Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         600,
	})
	return c.Handler
}

// Metrics counts requests and observes their latency by route pattern.
func Metrics() Middleware {
	m := metrics.Get()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type contextKey struct{}

var artistKey = contextKey{}

// WithArtist returns a context carrying artist.
func WithArtist(ctx context.Context, artist *models.Artist) context.Context {
	return context.WithValue(ctx, artistKey, artist)
}

// ArtistFrom returns the authenticated artist of a request.
func ArtistFrom(ctx context.Context) (*models.Artist, error) {
	artist, ok := ctx.Value(artistKey).(*models.Artist)
	if !ok || artist == nil {
		return nil, shared.ErrArtistMissing
	}
	return artist, nil
}

// ArtistLookup resolves API tokens.
type ArtistLookup interface {
	GetByToken(token string) (*models.Artist, error)
}

// Authenticate resolves the bearer token of each request to an artist.
func Authenticate(artists ArtistLookup) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				WriteError(w, r, shared.ErrUnauthorized)
				return
			}

			artist, err := artists.GetByToken(strings.TrimSpace(token))
			if err != nil {
				if StatusFor(err) == http.StatusNotFound {
					err = shared.ErrUnauthorized
				}
				WriteError(w, r, err)
				return
			}

			ctx := WithArtist(r.Context(), artist)
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("artist", artist.Username()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimiter keeps one token bucket per artist.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter allows perSecond requests per artist with bursts of burst. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     limit,
		burst:    max(burst, 1),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Handler limits requests by authenticated artist, falling back to the remote address.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if artist, err := ArtistFrom(r.Context()); err == nil {
			key = artist.ID()
		}

		if !rl.Allow(key) {
			if rl.rate > 0 && rl.rate != rate.Inf {
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(1/float64(rl.rate)))))
			}
			log.FromContext(r.Context()).Warn("rate limit exceeded", "key", key)
			WriteError(w, r, shared.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
