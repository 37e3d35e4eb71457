package i18n

import "net/http"

// Middleware injects a localizer into every request context. The deployment
// default language wins unless the request names a preference; go-i18n falls
// back through the Accept-Language chain to the bundle default.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(defaultLang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				loc = NewLocalizer(accept, defaultLang)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
