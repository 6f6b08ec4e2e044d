package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *elevation.Service) {
	v1 := app.Group("/api/v1")

	v1.Post("/elevation/resolve", func(c *fiber.Ctx) error {
		var req resolveRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		waypoints := req.toWaypoints()
		var (
			report elevation.ElevationReport
			err    error
		)
		if req.Itinerary != "" {
			report, err = service.ResolveAndStore(c.UserContext(), req.Itinerary, waypoints)
		} else {
			report, err = service.Resolve(c.UserContext(), waypoints)
		}
		if err != nil {
			return err
		}

		return c.JSON(report)
	})

	v1.Get("/itineraries/:name/report", func(c *fiber.Ctx) error {
		report, err := service.GetLatest(c.Params("name"))
		if err != nil {
			return err
		}
		return c.JSON(report)
	})

	v1.Get("/itineraries/:name/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reports, err := service.GetRange(req.Name, req.From, req.To)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"itinerary": req.Name,
			"from":      req.From,
			"to":        req.To,
			"reports":   reports,
		})
	})

	v1.Get("/itineraries/:name/profile", func(c *fiber.Ctx) error {
		report, err := service.GetLatest(c.Params("name"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"itinerary": report.Itinerary,
			"reportId":  report.ID,
			"provider":  report.Provider,
			"timestamp": report.Timestamp,
			"profile":   elevation.BuildProfile(report),
		})
	})
}

// ErrorHandler is the centralized Fiber error handler. It maps pipeline and
// store errors to status codes and renders {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var (
		fe        *fiber.Error
		exhausted *elevation.ExhaustedProvidersError
	)
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &exhausted):
		code = fiber.StatusServiceUnavailable
	case errors.Is(err, elevation.ErrInvalidWaypoints):
		code = fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

type waypointBody struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// resolveRequest is the body of POST /elevation/resolve. When Itinerary is
// set the report is also stored under that name.
type resolveRequest struct {
	Itinerary string         `json:"itinerary" validate:"omitempty,max=100,excludesall=/\\"`
	Waypoints []waypointBody `json:"waypoints" validate:"required,min=1,max=10000,dive"`
}

func (r resolveRequest) toWaypoints() []elevation.Waypoint {
	waypoints := make([]elevation.Waypoint, len(r.Waypoints))
	for i, w := range r.Waypoints {
		waypoints[i] = elevation.Waypoint{Latitude: *w.Latitude, Longitude: *w.Longitude, Index: i}
	}
	return waypoints
}

// historyQuery holds parameters for the history endpoint.
type historyQuery struct {
	Name string    `validate:"required"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Name = c.Params("name")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
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
