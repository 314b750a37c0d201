package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/services/spreadsheet"
)

type participantApi struct {
	svc      *participant.Service
	hierSvc  *hierarchy.Service
	validate *validator.Validate
}

func registerParticipantAPI(g *echo.Group, svc *participant.Service, hierSvc *hierarchy.Service, validate *validator.Validate) {
	api := participantApi{svc: svc, hierSvc: hierSvc, validate: validate}

	pg := g.Group("/participants")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.DELETE("", api.destroyAll)
	pg.GET("/template", api.template)
	pg.POST("/import", api.importFile)
	pg.GET("/export", api.export)

	dg := pg.Group("/:phone")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/attachment", api.uploadAttachment)
	dg.GET("/attachment", api.serveAttachment)
	dg.DELETE("/attachment", api.destroyAttachment)
}

func participantError(err error) error {
	switch errors.Cause(err) {
	case participant.ErrNotFound, participant.ErrNoAttachment:
		return errHttpNotFound
	}
	return err
}

// Handlers

type participantPage struct {
	Results []participant.Participant `json:"results"`
	Total   int                       `json:"total"`
}

func (api *participantApi) query(ctx echo.Context) error {
	var filter participant.QueryFilter
	filter.Search = ctx.QueryParam("search")
	filter.Page, _ = strconv.Atoi(ctx.QueryParam("page"))
	filter.Size, _ = strconv.Atoi(ctx.QueryParam("size"))

	results, total, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying participants")
	}
	return ctx.JSON(http.StatusOK, participantPage{Results: results, Total: total})
}

func (api *participantApi) retrieve(ctx echo.Context) error {
	sheet, err := api.svc.Sheet(ctx.Request().Context(), ctx.Param("phone"))
	if err != nil {
		return participantError(err)
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *participantApi) create(ctx echo.Context) error {
	var data participant.ScoreSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreSheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.SaveSheet(ctx.Request().Context(), data, true)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *participantApi) update(ctx echo.Context) error {
	var data participant.ScoreSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreSheet")
	}
	data.Phone = ctx.Param("phone")
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.SaveSheet(ctx.Request().Context(), data, false)
	if err != nil {
		return participantError(err)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *participantApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("phone")); err != nil {
		return participantError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *participantApi) destroyAll(ctx echo.Context) error {
	res, err := api.svc.DeleteAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "deleting all participants")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Spreadsheets

func (api *participantApi) template(ctx echo.Context) error {
	items, err := api.hierSvc.ScoreableItems(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing scoreable items")
	}
	var buf bytes.Buffer
	if err = spreadsheet.WriteScoreTemplate(&buf, items); err != nil {
		if errors.Cause(err) == spreadsheet.ErrAmbiguousColumns {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "building score template")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="scores_template.xlsx"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *participantApi) importFile(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing uploaded file")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	reqCtx := ctx.Request().Context()
	items, err := api.hierSvc.ScoreableItems(reqCtx)
	if err != nil {
		return errors.Wrap(err, "listing scoreable items")
	}

	rows, rowErrs, err := spreadsheet.ReadScores(f, fh.Filename, items)
	if err != nil {
		if errors.Cause(err) == spreadsheet.ErrAmbiguousColumns {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(rowErrs) > 0 {
		// reject the whole file so partial scores never sneak in
		return ctx.JSON(http.StatusBadRequest, participant.ImportResult{RowErrors: rowErrs})
	}

	res, err := api.svc.ImportScores(reqCtx, rows)
	if err != nil {
		return errors.Wrap(err, "importing scores")
	}
	if len(res.RowErrors) > 0 {
		return ctx.JSON(http.StatusBadRequest, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *participantApi) export(ctx echo.Context) error {
	items, participants, scoresByPhone, err := api.svc.ExportData(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "gathering export data")
	}
	var buf bytes.Buffer
	if err = spreadsheet.ExportScores(&buf, items, participants, scoresByPhone); err != nil {
		if errors.Cause(err) == spreadsheet.ErrAmbiguousColumns {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "exporting scores")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="scores.csv"`)
	return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// Attachments

func (api *participantApi) uploadAttachment(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing uploaded file")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	p, err := api.svc.SetAttachment(ctx.Request().Context(), ctx.Param("phone"), fh.Filename, f)
	if err != nil {
		return participantError(err)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *participantApi) serveAttachment(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("phone"))
	if err != nil {
		return participantError(err)
	}
	if !p.AttachmentFilename.Valid {
		return errHttpNotFound
	}
	f, err := api.svc.OpenAttachment(p.AttachmentFilename.String)
	if err != nil {
		return participantError(errors.Wrap(err, "opening attachment"))
	}
	defer func() { _ = f.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+p.AttachmentFilename.String+`"`)
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, f)
}

func (api *participantApi) destroyAttachment(ctx echo.Context) error {
	p, err := api.svc.DeleteAttachment(ctx.Request().Context(), ctx.Param("phone"))
	if err != nil {
		return participantError(err)
	}
	return ctx.JSON(http.StatusOK, p)
}
