package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/couchcryptid/case-trend-etl/internal/adapter/csvsource"
)

// LoadProfile reads a dataset layout profile. Keys absent from the file keep
// the values of csvsource.DefaultLayout; an empty path returns the default.
//
//	delimiter: ";"
//	header: true
//	columns:
//	  region_id: IdLandkreis
//	  cases: AnzahlFall
func LoadProfile(path string) (csvsource.Layout, error) {
	if path == "" {
		return csvsource.DefaultLayout(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	setProfileDefaults(v, csvsource.DefaultLayout())

	if err := v.ReadInConfig(); err != nil {
		return csvsource.Layout{}, fmt.Errorf("read dataset profile: %w", err)
	}

	var layout csvsource.Layout
	if err := v.Unmarshal(&layout); err != nil {
		return csvsource.Layout{}, fmt.Errorf("unmarshal dataset profile: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return csvsource.Layout{}, fmt.Errorf("validate dataset profile: %w", err)
	}
	return layout, nil
}

func setProfileDefaults(v *viper.Viper, d csvsource.Layout) {
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("header", d.Header)
	v.SetDefault("skip_rows", d.SkipRows)
	v.SetDefault("date_layouts", d.DateLayouts)

	v.SetDefault("columns.region_id", d.Columns.RegionID)
	v.SetDefault("columns.region_name", d.Columns.RegionName)
	v.SetDefault("columns.date", d.Columns.Date)
	v.SetDefault("columns.cases", d.Columns.Cases)
	v.SetDefault("columns.deaths", d.Columns.Deaths)
	v.SetDefault("columns.recovered", d.Columns.Recovered)
}
