package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core/assignment"
)

type studentApi struct {
	svc assignment.ServiceInterface
}

type TotalHoursResponse struct {
	StudentID  int `json:"student_id"`
	TotalHours int `json:"total_hours"`
}

func registerStudentAPI(g *echo.Group, svc assignment.ServiceInterface) {
	api := studentApi{svc: svc}

	// both routes share the param name, the router keeps one name per segment
	sg := g.Group("/students/:identifier")
	sg.GET("/summary", api.summary)
	sg.GET("/total-hours", api.totalHours)
}

// summary accepts a student id or an ASUrite alias.
func (api *studentApi) summary(ctx echo.Context) error {
	sum, err := api.svc.StudentSummary(ctx.Request().Context(), ctx.Param("identifier"))
	if err != nil {
		return errors.Wrap(err, "summarizing student assignments")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *studentApi) totalHours(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("identifier"))
	if err != nil {
		return errHttpNotFound
	}
	total, err := api.svc.TotalHours(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "totaling student hours")
	}
	return ctx.JSON(http.StatusOK, TotalHoursResponse{StudentID: id, TotalHours: total})
}
