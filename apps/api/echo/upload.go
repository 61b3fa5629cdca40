package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
)

const (
	uploadField = "file"
	mimeCSV     = "text/csv"
	mimeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportName  = "Assignments.xlsx"
)

var errMissingFile = core.NewValidationError(errors.New("File is empty or missing."))

type UploadResponse struct {
	Message   string        `json:"message"`
	Committed int           `json:"committed"`
	Format    ingest.Format `json:"format"`
}

// openUpload returns a row source over the uploaded `file` part.
func openUpload(ctx echo.Context) (ingest.RowSource, func(), error) {
	fh, err := ctx.FormFile(uploadField)
	if err != nil || fh.Size == 0 {
		return nil, nil, errMissingFile
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening uploaded file")
	}
	closeFn := func() { _ = f.Close() }

	src, err := ingest.SourceFor(fh.Filename, f)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return src, closeFn, nil
}

func (api *assignmentApi) upload(ctx echo.Context) error {
	src, closeFn, err := openUpload(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := api.pipeline.Upload(ctx.Request().Context(), src)
	if err != nil {
		return errors.Wrap(err, "uploading assignments")
	}
	return ctx.JSON(http.StatusOK, UploadResponse{
		Message:   fmt.Sprintf("%d records uploaded successfully.", res.Committed),
		Committed: res.Committed,
		Format:    res.Format,
	})
}

func (api *assignmentApi) calibratePreview(ctx echo.Context) error {
	src, closeFn, err := openUpload(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := api.pipeline.Preview(ctx.Request().Context(), src)
	if err != nil {
		return errors.Wrap(err, "previewing upload")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func attachment(ctx echo.Context, filename, mime string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mime, data)
}

func (api *assignmentApi) template(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := ingest.WriteTemplate(&buf); err != nil {
		return err
	}
	return attachment(ctx, ingest.TemplateFilename, mimeCSV, buf.Bytes())
}

func (api *assignmentApi) export(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		filter = new(assignment.QueryFilter)
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}

	var buf bytes.Buffer
	if err = ingest.WriteWorkbook(&buf, asgs); err != nil {
		return err
	}
	return attachment(ctx, exportName, mimeXLSX, buf.Bytes())
}
