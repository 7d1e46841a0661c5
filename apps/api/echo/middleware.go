package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core/user"
)

// adminMiddleware restricts a route to admin identities, optionally to a
// subset of the admin roles.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == user.RoleStateAdmin || claims.Role == user.RoleDistrictAdmin {
				if len(roles) == 0 {
					return next(ctx)
				}
				for _, role := range roles {
					if claims.Role == role {
						return next(ctx)
					}
				}
			}
			return errHTTPForbidden
		}
	}
}

// roleRecheckMiddleware guards sensitive (mutating) routes against token
// role-claim staleness: the stored identity is fetched and its current role
// must still match the token's claim. Reads trust the token for its lifetime;
// this is the documented staleness window.
func roleRecheckMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			usr, err := getContextIdentity(ctx, svc, claims)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "getting context identity")
			}
			if !usr.IsActive || usr.Role != claims.Role {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}
