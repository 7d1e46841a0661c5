package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/user"
)

var errUsrNotFoundInCtx = errors.New("identity object not found in echo.Context")

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service) {
	api := userApi{svc: svc}

	// login protocol; un-authed
	// TODO: rate limit `/login` & `/password-reset`
	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/verify-otp", api.verifyOTP)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	// identity management; authed
	ug := g.Group("/users", jwt)
	ug.POST("/register", api.create, adminMiddleware())
	ug.GET("", api.query, adminMiddleware())

	dg := ug.Group("/:id", ctxIdentityOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleRecheckMiddleware(api.svc))
	dg.DELETE("", api.deactivate, adminMiddleware(), roleRecheckMiddleware(api.svc))
}

// Handlers

// login performs the first factor (password + optional privileged-role claim
// backed by a secret code). On success an OTP is delivered out of band and
// the caller holds no token yet.
func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.BeginLogin(
		ctx.Request().Context(), data.Identifier, data.Password, data.ClaimedRole, data.SecretCode,
	); err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, ChallengeResponse{ChallengeIssued: true})
}

// verifyOTP completes the login: the submitted code is checked against the
// pending challenge and a token bearing the stored role is minted.
func (api *userApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.svc.CompleteLogin(ctx.Request().Context(), data.Identifier, data.Code)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetIdentityClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token: token,
		Identity: IdentitySummary{
			ID:   usr.ID,
			Role: usr.Role,
			Name: usr.Name,
		},
	})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIdentity")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetIdentityPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetIdentityPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying identities")
	}
	if users == nil {
		users = []user.Identity{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateIdentity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateIdentity")
	}

	ctxUsr, err := getContextIdentity(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive`, `Role`, `LoginID` and `Email` can only be changed by an admin.
		// Role mutation in particular is an explicit administrative action.
		if data.IsActive != nil || data.Role != "" || data.LoginID != "" || data.Email != "" {
			return errHTTPForbidden
		}
	}

	if err := data.Validate(usr, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating identity")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// deactivate soft-disables an identity; nothing is ever hard-deleted so
// historical records keep their owner linkage.
func (api *userApi) deactivate(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.Identity)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// ctxUser cannot deactivate themselves
	ctxUsr, err := getContextIdentity(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	if usr.ID == ctxUsr.ID {
		return errHTTPForbidden
	}

	if err := api.svc.Deactivate(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deactivating identity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func ctxIdentityOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextIdentity(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding identity by ID")
				}
			}
			return errHTTPNotFound
		}
	}
}

type (
	LoginRequest struct {
		Identifier string `json:"identifier" validate:"required"`
		Password   string `json:"password" validate:"required"`
		// ClaimedRole is only an assertion; it grants nothing unless
		// corroborated by the stored role and SecretCode.
		ClaimedRole string `json:"claimed_role" validate:"omitempty,role"`
		SecretCode  string `json:"secret_code"`
	}

	VerifyOTPRequest struct {
		Identifier string `json:"identifier" validate:"required"`
		Code       string `json:"code" validate:"required"`
	}

	ChallengeResponse struct {
		ChallengeIssued bool `json:"challenge_issued"`
	}

	IdentitySummary struct {
		ID   string `json:"id"`
		Role string `json:"role"`
		Name string `json:"name"`
	}

	LoginResponse struct {
		Token    string          `json:"token"`
		Identity IdentitySummary `json:"identity"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Identifier = core.CleanString(lr.Identifier, true /* lower */)
	lr.ClaimedRole = core.CleanString(lr.ClaimedRole)
	return core.Validate.Struct(lr)
}

func (vr *VerifyOTPRequest) Validate() error {
	vr.Identifier = core.CleanString(vr.Identifier, true /* lower */)
	vr.Code = core.CleanString(vr.Code)
	return core.Validate.Struct(vr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}
