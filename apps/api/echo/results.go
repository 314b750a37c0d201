package echoapi

import (
	"math"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/evaluation"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/core/setting"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundSummary rounds every aggregate to 2 decimals for display; the engine
// itself always works on full precision.
func roundSummary(s evaluation.Summary) evaluation.Summary {
	s.OverallScore = round2(s.OverallScore)
	for i := range s.Axes {
		s.Axes[i].Score = round2(s.Axes[i].Score)
		for j := range s.Axes[i].Indicators {
			s.Axes[i].Indicators[j].Score = round2(s.Axes[i].Indicators[j].Score)
		}
	}
	for id, avg := range s.IndicatorAverages {
		s.IndicatorAverages[id] = round2(avg)
	}
	return s
}

// participant self-service

type myResultsApi struct {
	engine     *evaluation.Engine
	partSvc    *participant.Service
	settingSvc *setting.Service
	validate   *validator.Validate
}

func registerResultsAPI(
	g *echo.Group,
	engine *evaluation.Engine,
	partSvc *participant.Service,
	settingSvc *setting.Service,
	validate *validator.Validate,
) {
	api := myResultsApi{engine: engine, partSvc: partSvc, settingSvc: settingSvc, validate: validate}
	g.POST("/my-results", api.myResults)
}

func (api *myResultsApi) myResults(ctx echo.Context) error {
	var data MyResultsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MyResultsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	summary, err := api.engine.ComputeSummary(reqCtx, data.Phone)
	if err != nil {
		if errors.Cause(err) == participant.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "computing results")
	}

	help, err := api.settingSvc.Get(reqCtx, setting.ParticipantHelpKey)
	if err != nil {
		return errors.Wrap(err, "getting help text")
	}
	return ctx.JSON(http.StatusOK, MyResultsResponse{Summary: roundSummary(summary), HelpText: help})
}

// admin results

type resultsApi struct {
	engine *evaluation.Engine
}

func registerAdminResultsAPI(g *echo.Group, engine *evaluation.Engine) {
	api := resultsApi{engine: engine}
	g.GET("/results", api.summary)
	g.GET("/results/:phone", api.individual)
}

func (api *resultsApi) summary(ctx echo.Context) error {
	summary, err := api.engine.ComputeSummary(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "computing summary")
	}
	return ctx.JSON(http.StatusOK, roundSummary(summary))
}

func (api *resultsApi) individual(ctx echo.Context) error {
	summary, err := api.engine.ComputeSummary(ctx.Request().Context(), ctx.Param("phone"))
	if err != nil {
		if errors.Cause(err) == participant.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "computing individual results")
	}
	return ctx.JSON(http.StatusOK, roundSummary(summary))
}
