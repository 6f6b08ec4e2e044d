package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

func TestToReportModel(t *testing.T) {
	wps := elevation.NewWaypoints([][2]float64{{46.5, 7.9}, {46.6, 8.0}})
	report := elevation.Aggregate([]elevation.ElevationRecord{
		elevation.Resolved(wps[0], 1200),
		elevation.Failed(wps[1], elevation.NoElevationData),
	}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	report.ID = uuid.NewString()
	report.Itinerary = "eiger"
	report.Provider = "usgs"

	model, err := toReportModel(report)
	require.NoError(t, err)
	assert.Equal(t, report.ID, model.ID.String())
	assert.Equal(t, "eiger", model.Itinerary)
	assert.Equal(t, 1, model.FailCount)
	assert.True(t, json.Valid(model.Records))

	back, err := toReport(&model)
	require.NoError(t, err)
	assert.Equal(t, report, back)
}

func TestToReportModel_GeneratesIDAndEmptyRecords(t *testing.T) {
	model, err := toReportModel(elevation.ElevationReport{Itinerary: "walk"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, model.ID)
	assert.JSONEq(t, `[]`, string(model.Records))
}

func TestToReport_CorruptRecords(t *testing.T) {
	_, err := toReport(&ReportModel{ID: uuid.New(), Records: json.RawMessage(`{"not": "a list"}`)})
	assert.Error(t, err)
}
