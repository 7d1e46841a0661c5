package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/user"
)

type recordApi struct {
	svc *record.Service
}

// registerRecordAPI mounts one CRUD surface per record kind. Listing takes no
// visibility parameters: the viewer comes from the validated token and the
// visibility filter is applied before anything leaves the server.
func registerRecordAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *record.Service, usrSvc *user.Service) {
	api := recordApi{svc: svc}
	recheck := roleRecheckMiddleware(usrSvc)

	for path, kind := range map[string]record.Kind{
		"/tasks":    record.KindTask,
		"/leaves":   record.KindLeave,
		"/projects": record.KindProject,
	} {
		kind := kind
		kg := g.Group(path, jwt)
		kg.GET("", api.list(kind))
		kg.POST("", api.create(kind), recheck)
		kg.GET("/:id", api.retrieve(kind))
		kg.PUT("/:id", api.update(kind), recheck)
		kg.DELETE("/:id", api.destroy(kind), recheck)
	}
}

func (api *recordApi) list(kind record.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		viewer, err := getContextViewer(ctx)
		if err != nil {
			return err
		}
		records, err := api.svc.List(ctx.Request().Context(), viewer, kind)
		if err != nil {
			return err
		}
		if records == nil {
			records = []record.Record{}
		}
		return ctx.JSON(http.StatusOK, records)
	}
}

func (api *recordApi) create(kind record.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data record.NewRecord
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewRecord")
		}
		if err := data.Validate(); err != nil {
			return err
		}

		viewer, err := getContextViewer(ctx)
		if err != nil {
			return err
		}
		rec, err := api.svc.Create(ctx.Request().Context(), viewer, kind, data)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusCreated, rec)
	}
}

func (api *recordApi) retrieve(kind record.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		viewer, err := getContextViewer(ctx)
		if err != nil {
			return err
		}
		rec, err := api.svc.Get(ctx.Request().Context(), viewer, kind, ctx.Param("id"))
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, rec)
	}
}

func (api *recordApi) update(kind record.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data record.NewRecord
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewRecord")
		}
		if err := data.Validate(); err != nil {
			return err
		}

		viewer, err := getContextViewer(ctx)
		if err != nil {
			return err
		}
		rec, err := api.svc.Update(ctx.Request().Context(), viewer, kind, ctx.Param("id"), data)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, rec)
	}
}

func (api *recordApi) destroy(kind record.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		viewer, err := getContextViewer(ctx)
		if err != nil {
			return err
		}
		if err := api.svc.Delete(ctx.Request().Context(), viewer, kind, ctx.Param("id")); err != nil {
			return err
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}
