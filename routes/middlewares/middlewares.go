package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/mediflow/httpx"
	"github.com/mbolis/mediflow/log"
)

type ctxKey int

const clinicKey ctxKey = iota

// Admin checks for the 'admin' role in an OAuth token signed with secret,
// and scopes the request to the clinic of the token.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		isAdmin := false
		for _, role := range strings.Split(claims[httpx.ClaimRoles], ",") {
			if strings.TrimSpace(role) == "admin" {
				isAdmin = true
				break
			}
		}
		if !isAdmin {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.admin_role")
			return
		}

		clinic := claims[httpx.ClaimClinic]
		if clinic == "" {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.clinic_claim")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clinicKey, clinic)))
	})
}

// ClinicID is the clinic an admin request is scoped to.
func ClinicID(r *http.Request) string {
	clinic, _ := r.Context().Value(clinicKey).(string)
	return clinic
}
