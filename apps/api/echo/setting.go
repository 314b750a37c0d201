package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/setting"
)

type settingApi struct {
	svc *setting.Service
}

func registerSettingAPI(g *echo.Group, svc *setting.Service) {
	api := settingApi{svc: svc}
	g.GET("/settings/:key", api.retrieve)
	g.PUT("/settings/:key", api.update)
}

func (api *settingApi) retrieve(ctx echo.Context) error {
	key := ctx.Param("key")
	value, err := api.svc.Get(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting setting")
	}
	return ctx.JSON(http.StatusOK, SettingResponse{Key: key, Value: value})
}

func (api *settingApi) update(ctx echo.Context) error {
	var data SettingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingRequest")
	}
	key := ctx.Param("key")
	if err := api.svc.Set(ctx.Request().Context(), key, data.Value); err != nil {
		return errors.Wrap(err, "saving setting")
	}
	return ctx.JSON(http.StatusOK, SettingResponse{Key: key, Value: data.Value})
}
