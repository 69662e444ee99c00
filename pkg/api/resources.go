package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/middleware"
	"github.com/platinummonkey/dernek/pkg/storage"
)

// registerResourceRoutes registers members, donations and social aid.
// Every route authenticates and checks the resource permission.
func (s *Server) registerResourceRoutes(router *mux.Router) {
	if s.deps.Members != nil {
		router.Handle("/members", methods{
			http.MethodGet: s.mw.WithProtectedAPI(s.listRecords(s.deps.Members),
				s.protectedOptions("Üyeler getirilemedi", "lenient", auth.PermMembersView)),
			http.MethodPost: s.mw.WithProtectedAPI(s.createMember,
				s.protectedOptions("Üye oluşturulamadı", "standard", auth.PermMembersCreate)),
		})
		router.Handle("/members/{id}", methods{
			http.MethodGet: s.mw.WithProtectedAPIParams(s.getMember,
				s.protectedOptions("Üye getirilemedi", "lenient", auth.PermMembersView)),
			http.MethodPut: s.mw.WithProtectedAPIParams(s.updateMember,
				s.protectedOptions("Üye güncellenemedi", "standard", auth.PermMembersEdit)),
			http.MethodDelete: s.mw.WithProtectedAPIParams(s.deleteMember,
				s.protectedOptions("Üye silinemedi", "standard", auth.PermMembersDelete)),
		})
	}

	if s.deps.Donations != nil {
		router.Handle("/donations", methods{
			http.MethodGet: s.mw.WithProtectedAPI(s.listRecords(s.deps.Donations, "amac", "tur"),
				s.protectedOptions("Bağışlar getirilemedi", "lenient", auth.PermDonationsView)),
			http.MethodPost: s.mw.WithProtectedAPI(s.createDonation,
				s.protectedOptions("Bağış oluşturulamadı", "standard", auth.PermDonationsCreate)),
		})
	}

	if s.deps.SocialAid != nil {
		router.Handle("/social-aid", methods{
			http.MethodGet: s.mw.WithProtectedAPI(s.listRecords(s.deps.SocialAid, "durum"),
				s.protectedOptions("Başvurular getirilemedi", "lenient", auth.PermSocialAidView)),
			http.MethodPost: s.mw.WithProtectedAPI(s.createSocialAid,
				s.protectedOptions("Başvuru oluşturulamadı", "standard", auth.PermSocialAidCreate)),
		})
	}
}

// listRecords serves a paged list. filters are the query parameters passed through as exact matches.
func (s *Server) listRecords(records Records, filters ...string) middleware.ProtectedHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
		page, err := httputil.ParsePage(r)
		if err != nil {
			return err
		}

		q := storage.ListQuery{Limit: page.Limit, Offset: page.Offset(), Search: page.Search}
		for _, name := range filters {
			if value := httputil.ParseQueryString(r, name, ""); value != "" {
				if q.Filters == nil {
					q.Filters = map[string]string{}
				}
				q.Filters[name] = value
			}
		}

		rows, total, err := records.List(r.Context(), q)
		if err != nil {
			return err
		}
		return httputil.WriteSuccess(w, http.StatusOK, rows, page.Meta(total))
	}
}

// createMember handles POST /api/members
func (s *Server) createMember(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
	var req MemberRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}
	return s.create(w, r, s.deps.Members, audit.ResourceTypeMember, req.Record())
}

// createDonation handles POST /api/donations
func (s *Server) createDonation(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
	var req DonationRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}
	return s.create(w, r, s.deps.Donations, audit.ResourceTypeDonation, req.Record())
}

// createSocialAid handles POST /api/social-aid
func (s *Server) createSocialAid(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
	var req SocialAidRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}
	return s.create(w, r, s.deps.SocialAid, audit.ResourceTypeSocialAid, req.Record())
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, records Records, resource audit.ResourceType, values storage.Record) error {
	row, err := records.Insert(r.Context(), values)
	if err != nil {
		return err
	}
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeDataCreate, audit.EventStatusSuccess).
		WithResource(resource, recordID(row)))
	return httputil.WriteCreated(w, row)
}

// getMember handles GET /api/members/{id}
func (s *Server) getMember(w http.ResponseWriter, r *http.Request, _ *auth.Identity, params map[string]string) error {
	id, err := memberID(params)
	if err != nil {
		return err
	}
	row, err := s.deps.Members.Get(r.Context(), id)
	if err != nil {
		return err
	}
	return httputil.WriteSuccess(w, http.StatusOK, row, nil)
}

// updateMember handles PUT /api/members/{id}
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request, _ *auth.Identity, params map[string]string) error {
	id, err := memberID(params)
	if err != nil {
		return err
	}
	var req MemberUpdateRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return err
	}

	row, err := s.deps.Members.Update(r.Context(), id, req.Record())
	if err != nil {
		return err
	}
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeDataUpdate, audit.EventStatusSuccess).
		WithResource(audit.ResourceTypeMember, params["id"]))
	return httputil.WriteSuccess(w, http.StatusOK, row, nil)
}

// deleteMember handles DELETE /api/members/{id}
func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request, _ *auth.Identity, params map[string]string) error {
	id, err := memberID(params)
	if err != nil {
		return err
	}
	if err := s.deps.Members.Delete(r.Context(), id); err != nil {
		return err
	}
	s.logAudit(r, audit.NewEvent(r, audit.EventTypeDataDelete, audit.EventStatusSuccess).
		WithResource(audit.ResourceTypeMember, params["id"]))
	return httputil.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Üye başarıyla silindi"}, nil)
}

func memberID(params map[string]string) (int64, error) {
	id, err := httputil.ParsePathInt64(params, "id")
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("Geçersiz üye ID")
	}
	return id, nil
}

func recordID(row storage.Record) string {
	switch id := row["id"].(type) {
	case int64:
		return strconv.FormatInt(id, 10)
	case string:
		return id
	}
	return ""
}
