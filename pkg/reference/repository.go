package reference

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/feeds"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertCountries refreshes the country cache from the API payload and
// returns how many rows were written.
func (r *Repository) UpsertCountries(ctx context.Context, records []feeds.CountryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]Country, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Country{
			COID:        rec.COID,
			CountryName: rec.CountryName,
			CountryCode: rec.CountryCode,
			ISOAlpha2:   rec.ISOAlpha2,
			RawJSON:     datatypes.JSON(rec.Raw),
			FetchedAt:   now,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coid"}},
		DoUpdates: clause.AssignmentColumns([]string{"country_name", "country_code", "iso_alpha2", "raw_json", "fetched_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// UpsertStates refreshes the state cache from the API payload.
func (r *Repository) UpsertStates(ctx context.Context, records []feeds.StateRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]State, 0, len(records))
	for _, rec := range records {
		rows = append(rows, State{
			STID:      rec.STID,
			COID:      rec.COID,
			StateName: rec.StateName,
			StateCode: rec.StateCode,
			RawJSON:   datatypes.JSON(rec.Raw),
			FetchedAt: now,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stid"}},
		DoUpdates: clause.AssignmentColumns([]string{"state_name", "state_code", "raw_json", "fetched_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
