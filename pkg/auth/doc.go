// Package auth provides request authentication and role-based permissions.
//
// # Overview
//
// The package resolves the caller of a request into an Identity and answers
// whether that identity may perform an operation. It has no HTTP routing of its
// own; pkg/middleware composes it into request pipelines.
//
// # Key Components
//
// Token validation: TokenValidator extracts a bearer credential and verifies it
//
//	validator := auth.NewTokenValidator(issuer, auth.NewCachedUserStore(users, 1024, time.Minute))
//	identity, err := validator.Validate(ctx, r)
//
// The credential comes from the "Authorization: Bearer" header when present,
// otherwise from the sb-access-token cookie. The identity backend
// (IdentityVerifier) vouches for the subject; the role is then read from the
// user store so a client can never choose its own role. Users without a role
// are treated as members.
//
// CachedUserStore trades that freshness for fewer queries: a role changed in
// the database is seen after the cache TTL expires, or right away once the
// user signs in again, since login invalidates the entry.
//
// Identity backends:
//
//	JWTIssuer    - HS256 tokens minted by this service (access 24h, refresh 30d)
//	OIDCVerifier - ID tokens from an external OpenID Connect provider
//
// Permissions: a static table from Role to permission set
//
//	auth.HasPermission(auth.RoleStaff, auth.PermMembersCreate)       // true
//	auth.HasPermission(auth.RoleMember, auth.PermSettingsManage)     // false
//	auth.HasPermission(auth.RoleAccountant)                          // true, nothing required
//
// Every required permission must be held. Unknown roles hold nothing.
//
// # Roles
//
//	admin     (admin)     - every permission
//	muhasebe  (accountant) - donations, member lookup, reports, documents view
//	gorevli   (staff)     - day-to-day data entry for donations, members, social aid, documents
//	uye       (member)    - read-only access to donations, members, social aid, documents
//
// # Errors
//
// Validation failures are *apierror.Error values (ErrMissingToken,
// ErrInvalidToken, ErrUserLookupFailed) so the HTTP layer can render them
// without inspecting messages.
package auth
