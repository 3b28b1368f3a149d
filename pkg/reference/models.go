package reference

import (
	"time"

	"gorm.io/datatypes"
)

// Country is a cached row from the upstream country listing.
type Country struct {
	COID        int64          `gorm:"column:coid;primaryKey;autoIncrement:false"`
	CountryName string         `gorm:"column:country_name;size:128"`
	CountryCode string         `gorm:"column:country_code;size:8"`
	ISOAlpha2   *string        `gorm:"column:iso_alpha2;size:2"`
	RawJSON     datatypes.JSON `gorm:"column:raw_json"`
	FetchedAt   time.Time      `gorm:"column:fetched_at"`
}

func (Country) TableName() string {
	return "countries"
}

// State is a cached row from the upstream state listing.
type State struct {
	STID      int64          `gorm:"column:stid;primaryKey;autoIncrement:false"`
	COID      int64          `gorm:"column:coid"`
	StateName string         `gorm:"column:state_name;size:128"`
	StateCode string         `gorm:"column:state_code;size:8"`
	RawJSON   datatypes.JSON `gorm:"column:raw_json"`
	FetchedAt time.Time      `gorm:"column:fetched_at"`
}

func (State) TableName() string {
	return "states"
}
