package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"eddn-ingester/internal/shared/database"
	apperrors "eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/shared/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.Wrap(sqlDB, 10*time.Millisecond, nil, logger.Discard())
	return New(db, logger.Discard()), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestExistenceChecks(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(q("FROM systems WHERE system_id = $1")).
		WithArgs("10477373803").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q("FROM stars WHERE system_id = $1 AND body_id = $2")).
		WithArgs("10477373803", "0").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(q("JOIN systems sy ON sy.system_id = st.system_id")).
		WithArgs("Sol", "Abraham Lincoln").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.SystemExists(ctx, "10477373803")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.StarExists(ctx, "10477373803", "0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.StationExistsInSystemNamed(ctx, "Sol", "Abraham Lincoln")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT system_id FROM systems WHERE name = $1")).
		WithArgs("Nowhere").
		WillReturnRows(sqlmock.NewRows([]string{"system_id"}))

	id, found, err := s.SystemIDByName(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStationBodyID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT body_id FROM stations WHERE station_id = $1")).
		WithArgs("128016640").
		WillReturnRows(sqlmock.NewRows([]string{"body_id"}).AddRow("12"))

	id, found, err := s.StationBodyID(context.Background(), "128016640")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "12", id)
}

func TestUpsertSystemIgnoresConflicts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(q("ON CONFLICT (system_id) DO NOTHING")).
		WithArgs("Sol", "10477373803", 0.0, 0.0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpsertSystem(context.Background(), System{Name: "Sol", ID: "10477373803"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStarWritesShadowRowAndNormalizesDistance(t *testing.T) {
	s, mock := newMockStore(t)
	class := "G"

	mock.ExpectExec(q("INSERT INTO abstract_bodies")).
		WithArgs("Sol", "0", "10477373803", "Star", UnknownDistance).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO stars")).
		WithArgs("Sol", "0", "10477373803", "G", nil, UnknownDistance).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertStar(context.Background(), Star{
		Name:     "Sol",
		BodyID:   "0",
		SystemID: "10477373803",
		Class:    &class,
		Distance: -42,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPlanetKeepsOptionalAttributesNull(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(q("INSERT INTO abstract_bodies")).
		WithArgs("Earth", "3", "10477373803", "Planet", 505.8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("COALESCE(EXCLUDED.terraforming_state, planets.terraforming_state)")).
		WithArgs("Earth", "3", "10477373803", nil, nil, nil, 505.8, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertPlanet(context.Background(), Planet{
		Name:     "Earth",
		BodyID:   "3",
		SystemID: "10477373803",
		Distance: 505.8,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(q("INSERT INTO abstract_bodies")).
		WithArgs("Abraham Lincoln", "12", "10477373803", "Station", UnknownDistance).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("ON CONFLICT (station_id) DO UPDATE")).
		WithArgs("Abraham Lincoln", "12", "10477373803", "128016640", UnknownDistance, "Orbis", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertStation(context.Background(), Station{
		Name:        "Abraham Lincoln",
		BodyID:      "12",
		SystemID:    "10477373803",
		StationID:   "128016640",
		Distance:    UnknownDistance,
		Type:        "Orbis",
		LastUpdated: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCommodityReportsStaleListing(t *testing.T) {
	s, mock := newMockStore(t)
	listing := CommodityListing{
		Name:        "Gold",
		CommodityID: CommodityID(128016640, "Gold"),
		StationID:   "128016640",
		BuyPrice:    9000,
		ObservedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(q("WHERE commodities.observed_at <= EXCLUDED.observed_at")).
		WithArgs("Gold", "128016640_Gold", "128016640", int64(9000), int64(0), int64(0), int64(0), int64(0), listing.ObservedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO commodities")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := s.UpsertCommodity(context.Background(), listing)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.UpsertCommodity(context.Background(), listing)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementFailureIsStoreError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(q("INSERT INTO systems")).
		WillReturnError(&pq.Error{Code: "23502", Message: "null value in column"})

	err := s.UpsertSystem(context.Background(), System{Name: "Sol", ID: "1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeStore, apperrors.GetType(err))
	assert.False(t, apperrors.IsRejection(err))
}

func TestNormalizeDistance(t *testing.T) {
	assert.Equal(t, UnknownDistance, NormalizeDistance(-0.5))
	assert.Equal(t, 0.0, NormalizeDistance(0))
	assert.Equal(t, 12.5, NormalizeDistance(12.5))

	d := -3.0
	assert.Equal(t, UnknownDistance, DistanceOrUnknown(&d))
	assert.Equal(t, UnknownDistance, DistanceOrUnknown(nil))
}
