package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/services/spreadsheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type hierarchyApi struct {
	svc      *hierarchy.Service
	validate *validator.Validate
}

func registerHierarchyAPI(g *echo.Group, svc *hierarchy.Service, validate *validator.Validate) {
	api := hierarchyApi{svc: svc, validate: validate}

	g.GET("/hierarchy", api.tree)
	g.GET("/hierarchy/template", api.template)
	g.POST("/hierarchy/import", api.importFile)
	g.GET("/scoreable-items", api.scoreableItems)

	g.POST("/axes", api.createAxis)
	g.PUT("/axes/:id", api.updateAxis)
	g.DELETE("/axes/:id", api.destroyAxis)

	g.POST("/indicators", api.createIndicator)
	g.PUT("/indicators/:id", api.updateIndicator)
	g.POST("/indicators/:id/toggle", api.toggleIndicator)
	g.DELETE("/indicators/:id", api.destroyIndicator)

	g.POST("/measures", api.createMeasure)
	g.PUT("/measures/:id", api.updateMeasure)
	g.POST("/measures/:id/toggle", api.toggleMeasure)
	g.DELETE("/measures/:id", api.destroyMeasure)
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

func hierarchyError(err error) error {
	if errors.Cause(err) == hierarchy.ErrNotFound {
		return errHttpNotFound
	}
	return err
}

// Handlers

func (api *hierarchyApi) tree(ctx echo.Context) error {
	tree, err := api.svc.Tree(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting hierarchy tree")
	}
	return ctx.JSON(http.StatusOK, tree)
}

func (api *hierarchyApi) scoreableItems(ctx echo.Context) error {
	items, err := api.svc.ScoreableItems(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing scoreable items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *hierarchyApi) template(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := spreadsheet.WriteHierarchyTemplate(&buf); err != nil {
		return errors.Wrap(err, "building hierarchy template")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="hierarchy_template.xlsx"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *hierarchyApi) importFile(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing uploaded file")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	rows, rowErrs, err := spreadsheet.ReadHierarchy(f, fh.Filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(rowErrs) > 0 {
		// reject the whole file so a partial hierarchy never sneaks in
		return ctx.JSON(http.StatusBadRequest, hierarchy.ImportResult{RowErrors: rowErrs})
	}

	res, err := api.svc.Import(ctx.Request().Context(), rows)
	if err != nil {
		return errors.Wrap(err, "importing hierarchy")
	}
	if len(res.RowErrors) > 0 {
		return ctx.JSON(http.StatusBadRequest, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

// Axis

func (api *hierarchyApi) createAxis(ctx echo.Context) error {
	var data hierarchy.NewAxis
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAxis")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	axis, err := api.svc.CreateAxis(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, axis)
}

func (api *hierarchyApi) updateAxis(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data hierarchy.UpdateAxis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAxis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	axis, err := api.svc.UpdateAxis(ctx.Request().Context(), id, data)
	if err != nil {
		return hierarchyError(err)
	}
	return ctx.JSON(http.StatusOK, axis)
}

func (api *hierarchyApi) destroyAxis(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAxis(ctx.Request().Context(), id); err != nil {
		return hierarchyError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Indicator

func (api *hierarchyApi) createIndicator(ctx echo.Context) error {
	var data hierarchy.NewIndicator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIndicator")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ind, err := api.svc.CreateIndicator(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ind)
}

func (api *hierarchyApi) updateIndicator(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data hierarchy.UpdateIndicator
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateIndicator")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	ind, err := api.svc.UpdateIndicator(ctx.Request().Context(), id, data)
	if err != nil {
		return hierarchyError(err)
	}
	return ctx.JSON(http.StatusOK, ind)
}

func (api *hierarchyApi) toggleIndicator(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ind, err := api.svc.ToggleIndicator(ctx.Request().Context(), id)
	if err != nil {
		return hierarchyError(err)
	}
	return ctx.JSON(http.StatusOK, ind)
}

func (api *hierarchyApi) destroyIndicator(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteIndicator(ctx.Request().Context(), id); err != nil {
		return hierarchyError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Measure

func (api *hierarchyApi) createMeasure(ctx echo.Context) error {
	var data hierarchy.NewMeasure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeasure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.CreateMeasure(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *hierarchyApi) updateMeasure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data hierarchy.UpdateMeasure
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMeasure")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.UpdateMeasure(ctx.Request().Context(), id, data)
	if err != nil {
		return hierarchyError(err)
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *hierarchyApi) toggleMeasure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.ToggleMeasure(ctx.Request().Context(), id)
	if err != nil {
		return hierarchyError(err)
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *hierarchyApi) destroyMeasure(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMeasure(ctx.Request().Context(), id); err != nil {
		return hierarchyError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}
