package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
)

func (s *Server) registerUserRoutes(router *mux.Router) {
	if s.deps.Users == nil {
		return
	}
	router.Handle("/users", methods{
		http.MethodGet: s.mw.WithProtectedAPI(s.listUsers,
			s.protectedOptions("Kullanıcılar getirilemedi", "lenient", auth.PermUsersView)),
	})
}

// listUsers handles GET /api/users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
	page, err := httputil.ParsePage(r)
	if err != nil {
		return err
	}

	users, total, err := s.deps.Users.ListUsers(r.Context(), page.Limit, page.Offset())
	if err != nil {
		return err
	}

	out := make([]SessionUser, 0, len(users))
	for _, u := range users {
		out = append(out, SessionUser{ID: u.ID, Email: u.Email, Role: auth.ParseRole(u.Role)})
	}
	return httputil.WriteSuccess(w, http.StatusOK, out, page.Meta(total))
}
