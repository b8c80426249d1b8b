// Package synth builds raw user and clickstream tables, either from explicit
// rows or generated with deliberate defects for demos and load tests.
package synth

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/series"
)

// UserRow is one raw row of the user table. Empty strings and a nil Age are
// missing cells; user_id is always present.
type UserRow struct {
	ID          string
	FirstActive string
	Created     string
	Booking     string
	Gender      string
	Age         *int64
	Platform    string
	Process     string
	Language    string
	Channel     string
	Provider    string
	Affiliate   string
	Application string
	Device      string
	Browser     string
	Destination string
}

// ClickRow is one raw clickstream event. Empty strings and a nil Seconds are
// missing cells.
type ClickRow struct {
	UserID       string
	Action       string
	ActionType   string
	ActionDetail string
	Device       string
	Seconds      *float64
}

func textColumn[R any](mem memory.Allocator, name string, rows []R, always bool, get func(R) string) dataframe.ISeries {
	values := make([]string, len(rows))
	valid := make([]bool, len(rows))
	for i, r := range rows {
		values[i] = get(r)
		valid[i] = always || values[i] != ""
	}
	return series.NewNullable(name, values, valid, mem)
}

// UsersFrame builds a table with the columns of schema.Users() from rows.
func UsersFrame(mem memory.Allocator, rows ...UserRow) *dataframe.DataFrame {
	text := func(name string, get func(UserRow) string) dataframe.ISeries {
		return textColumn(mem, name, rows, name == schema.UserID, get)
	}

	ages := make([]int64, len(rows))
	agesValid := make([]bool, len(rows))
	for i, r := range rows {
		if r.Age != nil {
			ages[i], agesValid[i] = *r.Age, true
		}
	}

	return dataframe.New(
		text(schema.UserID, func(r UserRow) string { return r.ID }),
		text(schema.FirstActiveTimestamp, func(r UserRow) string { return r.FirstActive }),
		text(schema.AccountCreatedDate, func(r UserRow) string { return r.Created }),
		text(schema.FirstBookingDate, func(r UserRow) string { return r.Booking }),
		text(schema.UserGender, func(r UserRow) string { return r.Gender }),
		series.NewNullable(schema.UserAge, ages, agesValid, mem),
		text(schema.SignupPlatform, func(r UserRow) string { return r.Platform }),
		text(schema.SignupProcess, func(r UserRow) string { return r.Process }),
		text(schema.UserLanguage, func(r UserRow) string { return r.Language }),
		text(schema.MarketingChannel, func(r UserRow) string { return r.Channel }),
		text(schema.MarketingProvider, func(r UserRow) string { return r.Provider }),
		text(schema.FirstTrackedAffil, func(r UserRow) string { return r.Affiliate }),
		text(schema.SignupApplication, func(r UserRow) string { return r.Application }),
		text(schema.FirstDevice, func(r UserRow) string { return r.Device }),
		text(schema.FirstWebBrowser, func(r UserRow) string { return r.Browser }),
		text(schema.DestinationCountry, func(r UserRow) string { return r.Destination }),
	)
}

// ClickstreamFrame builds a table with the columns of schema.Clickstream()
// from rows.
func ClickstreamFrame(mem memory.Allocator, rows ...ClickRow) *dataframe.DataFrame {
	text := func(name string, get func(ClickRow) string) dataframe.ISeries {
		return textColumn(mem, name, rows, false, get)
	}

	secs := make([]float64, len(rows))
	secsValid := make([]bool, len(rows))
	for i, r := range rows {
		if r.Seconds != nil {
			secs[i], secsValid[i] = *r.Seconds, true
		}
	}

	return dataframe.New(
		text(schema.SessionUserID, func(r ClickRow) string { return r.UserID }),
		text(schema.SessionAction, func(r ClickRow) string { return r.Action }),
		text(schema.SessionActionType, func(r ClickRow) string { return r.ActionType }),
		text(schema.SessionActionDetail, func(r ClickRow) string { return r.ActionDetail }),
		text(schema.SessionDeviceType, func(r ClickRow) string { return r.Device }),
		series.NewNullable(schema.TimePassedInSeconds, secs, secsValid, mem),
	)
}
