package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/student"
	"github.com/mzalendo/shule/core/user"
)

type studentApi struct {
	svc *student.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service, usrSvc *user.Service) {
	api := studentApi{svc: svc}

	sg := g.Group("/students", jwt)
	sg.POST("", api.create, roleRecheckMiddleware(usrSvc))
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
}

// create records a student and links it to a parent identity by phone.
// When a parent account is provisioned the generated credentials appear in
// this response exactly once and are not retrievable afterward.
func (api *studentApi) create(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx)
	if err != nil {
		return err
	}
	if err := record.Authorize(viewer.Role, record.ActionCreate, record.KindStudent); err != nil {
		return err
	}

	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	st, creds, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}

	resp := StudentResponse{Student: st}
	if creds != nil {
		resp.ParentCredentials = creds
	}
	return ctx.JSON(http.StatusCreated, resp)
}

// query lists students: parents get exactly their own children, staff-side
// roles get everything their capability allows.
func (api *studentApi) query(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx)
	if err != nil {
		return err
	}
	if err := record.Authorize(viewer.Role, record.ActionList, record.KindStudent); err != nil {
		return err
	}

	var students []student.Student
	if viewer.Role == user.RoleParent {
		students, err = api.svc.ChildrenOf(ctx.Request().Context(), viewer.ID)
	} else {
		students, err = api.svc.QueryAll(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	viewer, err := getContextViewer(ctx)
	if err != nil {
		return err
	}
	if err := record.Authorize(viewer.Role, record.ActionRead, record.KindStudent); err != nil {
		return err
	}

	st, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	// a parent may only see their own children; absence and invisibility
	// look the same
	if viewer.Role == user.RoleParent && st.ParentID != viewer.ID {
		return student.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, st)
}

type StudentResponse struct {
	student.Student
	ParentCredentials *user.GeneratedCredentials `json:"parent_credentials,omitempty"`
}
