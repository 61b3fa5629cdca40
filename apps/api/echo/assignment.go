package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
)

type assignmentApi struct {
	svc      assignment.ServiceInterface
	pipeline *ingest.Pipeline
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	svc assignment.ServiceInterface,
	pipeline *ingest.Pipeline,
	validate *validator.Validate,
) {
	api := assignmentApi{
		svc:      svc,
		pipeline: pipeline,
		validate: validate,
	}

	ag := g.Group("/assignments")
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.POST("/bulk-edit", api.bulkEdit)

	// spreadsheets
	ag.POST("/upload", api.upload)
	ag.POST("/calibrate-preview", api.calibratePreview)
	ag.GET("/template", api.template)
	ag.GET("/export", api.export)

	// lineage endpoints
	lg := ag.Group("/lineage/:lineage")
	lg.GET("", api.history)
	lg.GET("/diff", api.diff)

	// detail endpoints
	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.partialUpdate)
	dg.DELETE("", api.destroy)
	dg.PUT("/workflow", api.updateWorkflow)
	dg.POST("/edit", api.proposeEdit)
}

// idParam returns the `:id` path param; unparsable ids are not found.
func idParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

func lineageParam(ctx echo.Context) (uuid.UUID, error) {
	lineageID, err := uuid.Parse(ctx.Param("lineage"))
	if err != nil {
		return uuid.Nil, errHttpNotFound
	}
	return lineageID, nil
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asg, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) partialUpdate(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data assignment.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.PartialUpdate(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) updateWorkflow(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data assignment.WorkflowUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WorkflowUpdate")
	}

	asg, err := api.svc.UpdateWorkflow(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment workflow")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) proposeEdit(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data assignment.EditRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditRequest")
	}
	data.OriginalID = id
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ProposeEdit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "proposing edit")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) history(ctx echo.Context) error {
	lineageID, err := lineageParam(ctx)
	if err != nil {
		return err
	}
	asgs, err := api.svc.History(ctx.Request().Context(), lineageID)
	if err != nil {
		return errors.Wrap(err, "getting lineage history")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) diff(ctx echo.Context) error {
	lineageID, err := lineageParam(ctx)
	if err != nil {
		return err
	}
	diff, err := api.svc.Diff(ctx.Request().Context(), lineageID)
	if err != nil {
		return errors.Wrap(err, "diffing lineage")
	}
	return ctx.String(http.StatusOK, diff)
}

func (api *assignmentApi) bulkEdit(ctx echo.Context) error {
	var data assignment.BulkEditRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEditRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.BulkEdit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "bulk editing assignments")
	}
	return ctx.JSON(http.StatusOK, res)
}
