package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/wpl-go/weather-provider-storage/internal/controller"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
	"github.com/wpl-go/weather-provider-storage/internal/model"
	"github.com/wpl-go/weather-provider-storage/internal/storage"
)

var validate = validator.New()

// RegisterRoutes wires the operational handlers into the Fiber app. This
// surface exists for operators and upstream cache-status reporting only; no
// endpoint serves weather data to end users.
func RegisterRoutes(app *fiber.App, ctrl *controller.Controller) {
	v1 := app.Group("/api/v1")

	v1.Get("/sources", func(c *fiber.Ctx) error {
		type modelView struct {
			Metadata   model.Metadata `json:"metadata"`
			Predictive bool           `json:"predictive"`
		}
		type sourceView struct {
			ID     string      `json:"id"`
			Name   string      `json:"name"`
			Models []modelView `json:"models"`
		}

		var out []sourceView
		for _, src := range ctrl.Registry().Sources() {
			view := sourceView{ID: src.ID, Name: src.Name}
			for _, m := range src.Models() {
				view.Models = append(view.Models, modelView{Metadata: m.Metadata(), Predictive: m.Predictive()})
			}
			out = append(out, view)
		}
		return c.JSON(fiber.Map{"sources": out})
	})

	v1.Get("/storage/:source/:model/index", func(c *fiber.Ctx) error {
		h, err := resolveHandler(c, ctrl)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"model":      c.Params("model"),
			"partitions": h.FileIndex(),
		})
	})

	v1.Get("/storage/:source/:model/evaluation", func(c *fiber.Ctx) error {
		h, err := resolveHandler(c, ctrl)
		if err != nil {
			return err
		}

		var q extentQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := h.Evaluation(q.toRequest())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(report)
	})

	v1.Post("/storage/:source/:model/update", func(c *fiber.Ctx) error {
		var q extentQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		req := q.toRequest()
		err := ctrl.UpdateWeather(c.Context(), c.Params("source"), c.Params("model"), req.Period, req.Extent, req.Factors)
		if err != nil {
			if errors.Is(err, model.ErrSourceNotFound) || errors.Is(err, model.ErrModelNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			var fetchErr *storage.FetchError
			if errors.As(err, &fetchErr) {
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"status": "refreshed"})
	})

	v1.Delete("/storage/:source/:model", func(c *fiber.Ctx) error {
		var period *meteo.Period
		fromStr, toStr := c.Query("from"), c.Query("to")
		if fromStr != "" || toStr != "" {
			p, err := parsePeriod(fromStr, toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			period = &p
		}

		err := ctrl.ClearWeather(c.Context(), c.Params("source"), c.Params("model"), period)
		if err != nil {
			if errors.Is(err, model.ErrSourceNotFound) || errors.Is(err, model.ErrModelNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"status": "cleared"})
	})
}

func resolveHandler(c *fiber.Ctx, ctrl *controller.Controller) (*storage.Handler, error) {
	h, err := ctrl.Handler(c.Params("source"), c.Params("model"))
	if err != nil {
		if errors.Is(err, model.ErrSourceNotFound) || errors.Is(err, model.ErrModelNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return h, nil
}

// extentQuery holds the query parameters that describe a time/space/variable
// extent.
type extentQuery struct {
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required,gtfield=From"`
	MinLat  float64   `validate:"gte=-90,lte=90"`
	MaxLat  float64   `validate:"gte=-90,lte=90,gtefield=MinLat"`
	MinLon  float64   `validate:"gte=-180,lte=180"`
	MaxLon  float64   `validate:"gte=-180,lte=180,gtefield=MinLon"`
	Factors []string  `validate:"required,min=1"`
}

func (q *extentQuery) bind(c *fiber.Ctx) error {
	p, err := parsePeriod(c.Query("from"), c.Query("to"))
	if err != nil {
		return err
	}
	q.From, q.To = p.Start, p.End

	for name, dst := range map[string]*float64{
		"minLat": &q.MinLat, "maxLat": &q.MaxLat,
		"minLon": &q.MinLon, "maxLon": &q.MaxLon,
	} {
		raw := c.Query(name)
		if raw == "" {
			return errors.New("minLat, maxLat, minLon and maxLon query parameters are required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.New("invalid " + name + " value")
		}
		*dst = v
	}

	factors := strings.Split(c.Query("factors"), ",")
	for _, f := range factors {
		if f = strings.TrimSpace(f); f != "" {
			q.Factors = append(q.Factors, f)
		}
	}

	return validate.Struct(q)
}

func (q extentQuery) toRequest() meteo.Request {
	return meteo.Request{
		Period:  meteo.NewPeriod(q.From, q.To),
		Extent:  meteo.Extent{MinLat: q.MinLat, MaxLat: q.MaxLat, MinLon: q.MinLon, MaxLon: q.MaxLon},
		Factors: meteo.NormalizeFactors(q.Factors),
	}
}

func parsePeriod(fromStr, toStr string) (meteo.Period, error) {
	if fromStr == "" || toStr == "" {
		return meteo.Period{}, errors.New("from and to query parameters are required")
	}
	from, err := parseTime(fromStr)
	if err != nil {
		return meteo.Period{}, err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return meteo.Period{}, err
	}
	return meteo.NewPeriod(from, to), nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
