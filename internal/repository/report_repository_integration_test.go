//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/store"
)

// setupPostgres starts a PostgreSQL container and returns a migrated GORM DB.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test_elevation",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_elevation sslmode=disable", host, port.Port())

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = Open(dsn)
		return err == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")
	return db
}

func testReport(itinerary string, ts time.Time, meters float64) elevation.ElevationReport {
	wps := elevation.NewWaypoints([][2]float64{{46.5, 7.9}, {46.6, 8.0}})
	r := elevation.Aggregate([]elevation.ElevationRecord{
		elevation.Resolved(wps[0], meters),
		elevation.Failed(wps[1], elevation.NoElevationData),
	}, ts)
	r.ID = uuid.NewString()
	r.Itinerary = itinerary
	r.Provider = "open-elevation"
	return r
}

func TestGormReportRepository(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormReportRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Publish(ctx, testReport("eiger", base, 1000)))
	require.NoError(t, repo.Publish(ctx, testReport("eiger", base.Add(time.Hour), 1100)))
	require.NoError(t, repo.Publish(ctx, testReport("jungfrau", base, 3400)))

	latest, err := repo.FindLatest(ctx, "eiger")
	require.NoError(t, err)
	assert.Equal(t, 1100.0, *latest.Records[0].Elevation)
	assert.Nil(t, latest.Records[1].Elevation)
	assert.True(t, latest.Timestamp.Equal(base.Add(time.Hour)))

	reports, err := repo.FindRange(ctx, "eiger", base, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1000.0, *reports[0].Records[0].Elevation)

	_, err = repo.FindLatest(ctx, "matterhorn")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
