package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call the API from a browser.
	// Matching is case-insensitive and the configured spelling is echoed
	// back. An empty list, or an entry "*", allows every origin.
	AllowOrigins []string

	// AllowMethods lists the methods announced in preflight responses.
	// When empty it defaults to "GET, POST, OPTIONS", which covers the chat
	// and menu endpoints.
	AllowMethods []string

	// AllowHeaders lists the request headers a browser may send. When empty
	// the Access-Control-Request-Headers of the preflight are echoed back.
	AllowHeaders []string

	// AllowCredentials lets browsers expose responses to credentialed
	// requests. Browsers reject "*" together with credentials, so enabling
	// this turns the wildcard off: only origins listed explicitly are
	// allowed, and each is echoed individually.
	AllowCredentials bool

	// MaxAge is how long, in seconds, a browser may cache a preflight
	// result. Zero omits the Access-Control-Max-Age header.
	MaxAge int
}

// CORS returns a middleware that answers preflight requests and adds
// Access-Control-* headers to cross-origin requests.
//
// A request is a preflight when it is an OPTIONS request carrying
// Access-Control-Request-Method. Preflights are answered with 204 and never
// reach the next handler; for a disallowed origin the 204 carries no
// Access-Control-Allow-Origin, so the browser blocks the real request.
// Requests without an Origin header pass through untouched. Unless every
// origin is allowed, responses carry "Vary: Origin" so shared caches keep
// separate copies per origin.
func CORS(cfg CORSConfig) Middleware {
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	wildcard := len(cfg.AllowOrigins) == 0
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		allowed[strings.ToLower(o)] = o
	}
	if cfg.AllowCredentials {
		wildcard = false
	}

	methods := "GET, POST, OPTIONS"
	if len(cfg.AllowMethods) > 0 {
		methods = strings.Join(cfg.AllowMethods, ", ")
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	allowOrigin := func(origin string) string {
		if wildcard {
			return "*"
		}
		return allowed[strings.ToLower(origin)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !wildcard {
				h.Add("Vary", "Origin")
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			value := allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if value != "" {
					h.Set("Access-Control-Allow-Origin", value)
					h.Set("Access-Control-Allow-Methods", methods)
					switch {
					case headers != "":
						h.Set("Access-Control-Allow-Headers", headers)
					case r.Header.Get("Access-Control-Request-Headers") != "":
						h.Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
					}
					if cfg.AllowCredentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if maxAge != "" {
						h.Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if value != "" {
				h.Set("Access-Control-Allow-Origin", value)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
