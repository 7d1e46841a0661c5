package echoapi

import (
	"net/http"
	"reflect"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/student"
	"github.com/mzalendo/shule/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "TokenInvalid")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "AccountDeactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "RefreshExpired")
	errHTTPForbidden      = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	errHTTPNotFound       = echo.NewHTTPError(http.StatusNotFound, "NotFound")
)

// kindByErr maps domain errors to their (status, kind) response. NotFound is
// shared by missing and filtered-out resources on purpose: existence of a
// record a viewer cannot see is never leaked.
var kindByErr = map[error]struct {
	code int
	kind string
}{
	user.ErrInvalidCredentials:       {http.StatusUnauthorized, "InvalidCredentials"},
	user.ErrRoleClaimRejected:        {http.StatusForbidden, "RoleClaimRejected"},
	user.ErrAccountDeactivated:       {http.StatusForbidden, "AccountDeactivated"},
	user.ErrOTPNotFound:              {http.StatusUnauthorized, "OTPNotFound"},
	user.ErrOTPExpired:               {http.StatusUnauthorized, "OTPExpired"},
	user.ErrOTPMismatch:              {http.StatusUnauthorized, "OTPMismatch"},
	user.ErrOTPAttemptsExhausted:     {http.StatusUnauthorized, "OTPAttemptsExhausted"},
	record.ErrForbidden:              {http.StatusForbidden, "Forbidden"},
	record.ErrNotFound:               {http.StatusNotFound, "NotFound"},
	student.ErrNotFound:              {http.StatusNotFound, "NotFound"},
	user.ErrNotFound:                 {http.StatusNotFound, "NotFound"},
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called in order to gracefully
// shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		// Indexing the map with an unhashable dynamic type (e.g. the slice
		// validator.ValidationErrors) panics; such errors belong to the
		// type switch below anyway.
		var mapped struct {
			code int
			kind string
		}
		var ok bool
		if cause != nil && reflect.TypeOf(cause).Comparable() {
			mapped, ok = kindByErr[cause]
		}
		if ok {
			code = mapped.code
			message = mapped.kind
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = "TokenInvalid"
					break
				}
				code, message = jwtErrorKind(origErr)
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.Identity
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// jwtErrorKind digs into an echo.HTTPError raised by the JWT middleware to
// tell an expired token from a malformed or badly signed one. Token errors
// are always fatal to the request; there is no anonymous fallback.
func jwtErrorKind(herr *echo.HTTPError) (int, interface{}) {
	inner := herr.Internal
	for inner != nil {
		if vErr, ok := inner.(*jwt.ValidationError); ok {
			if vErr.Errors&jwt.ValidationErrorExpired != 0 {
				return http.StatusUnauthorized, "TokenExpired"
			}
			return http.StatusUnauthorized, "TokenInvalid"
		}
		if herr2, ok := inner.(*echo.HTTPError); ok {
			inner = herr2.Internal
			continue
		}
		break
	}
	if herr.Code == http.StatusUnauthorized || herr.Code == http.StatusBadRequest && herr.Internal != nil {
		return http.StatusUnauthorized, "TokenInvalid"
	}
	return herr.Code, herr.Message
}
