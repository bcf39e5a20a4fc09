// metrics.go
//
// The runtime forms data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-formsdb.
// jam-build-formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-formsdb/internal/metrics"
	"github.com/localnerve/jam-build-formsdb/internal/types"
)

// MetricsHandler proxies metric panel queries through the caching client
type MetricsHandler struct {
	Client *metrics.Client
}

// MetricsQueryRequest is the panel query body. Either start/end epoch millis
// or a range preset resolves the window.
type MetricsQueryRequest struct {
	metrics.QueryInput
	Range       string `json:"range,omitempty"`
	CustomStart string `json:"customStart,omitempty"`
	CustomEnd   string `json:"customEnd,omitempty"`
	Cumulative  string `json:"cumulative,omitempty"` // range or all_time
}

// GetCatalog handles GET /api/metrics/catalog
// @Summary Get metric catalog
// @Description Metric key to unit/label map; best effort, empty on backend failure
// @Tags Metrics
// @Produce json
// @Success 200 {object} map[string]metrics.CatalogItem
// @Router /metrics/catalog [get]
func (h *MetricsHandler) GetCatalog(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.Client.Catalog(c.UserContext()))
}

// Query handles POST /api/metrics/query
// @Summary Run a metrics query
// @Description Query a time series for one or more entities, optionally as a running total
// @Tags Metrics
// @Accept json
// @Produce json
// @Param query body handlers.MetricsQueryRequest true "Query"
// @Success 200 {array} metrics.Point
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 502 {object} utils.ErrorResponseStruct
// @Router /metrics/query [post]
func (h *MetricsHandler) Query(c *fiber.Ctx) error {
	var req MetricsQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return types.NewInvalidArgument("Invalid request body", "metrics.body")
	}
	if req.MetricKey == "" {
		return types.NewInvalidArgument("metricKey is required", "metrics.validation")
	}

	if req.Range != "" {
		start, end, err := metrics.ComputeRange(req.Range, req.CustomStart, req.CustomEnd, time.Now().UTC())
		if err != nil {
			return types.NewInvalidArgument(err.Error(), "metrics.validation.range")
		}
		req.Start = start.UnixMilli()
		req.End = end.UnixMilli()
	}

	ctx := c.UserContext()
	var (
		points []metrics.Point
		err    error
	)
	if req.Cumulative != "" {
		points, err = h.Client.Cumulative(ctx, req.QueryInput, req.Cumulative)
	} else {
		points, err = h.Client.Query(ctx, req.QueryInput)
	}
	if err != nil {
		return types.NewInternal(err.Error(), "metrics.query")
	}
	if points == nil {
		points = []metrics.Point{}
	}
	return c.Status(fiber.StatusOK).JSON(points)
}

// CurrentValue handles POST /api/metrics/current
// @Summary Get a current value
// @Description Current-value display across entities; last values are summed per entity
// @Tags Metrics
// @Accept json
// @Produce json
// @Param query body metrics.QueryInput true "Query"
// @Success 200 {object} map[string]float64
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /metrics/current [post]
func (h *MetricsHandler) CurrentValue(c *fiber.Ctx) error {
	var req metrics.QueryInput
	if err := c.BodyParser(&req); err != nil {
		return types.NewInvalidArgument("Invalid request body", "metrics.body")
	}
	if req.MetricKey == "" {
		return types.NewInvalidArgument("metricKey is required", "metrics.validation")
	}

	value, err := h.Client.CurrentValue(c.UserContext(), req)
	if err != nil {
		return types.NewInternal(err.Error(), "metrics.current")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"value": value})
}
