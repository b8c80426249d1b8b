package schema

// User table columns.
const (
	UserID               = "user_id"
	FirstActiveTimestamp = "first_active_timestamp"
	FirstActiveDate      = "first_active_date"
	AccountCreatedDate   = "account_created_date"
	FirstBookingDate     = "first_booking_date"
	UserGender           = "user_gender"
	UserAge              = "user_age"
	SignupPlatform       = "signup_platform"
	SignupProcess        = "signup_process"
	UserLanguage         = "user_language"
	MarketingChannel     = "marketing_channel"
	MarketingProvider    = "marketing_provider"
	FirstTrackedAffil    = "first_tracked_affiliate"
	SignupApplication    = "signup_application"
	FirstDevice          = "first_device"
	FirstWebBrowser      = "first_web_browser"
	DestinationCountry   = "destination_country"
)

// Clickstream table columns.
const (
	SessionUserID       = "session_user_id"
	SessionAction       = "session_action"
	SessionActionType   = "session_action_type"
	SessionActionDetail = "session_action_detail"
	SessionDeviceType   = "session_device_type"
	TimePassedInSeconds = "time_passed_in_seconds"
	IsNewSession        = "is_new_session"
)

// NoDestination is the destination_country value meaning no booking was made.
const NoDestination = "NDF"

// Users is the raw user table as it is read from user.csv. Date columns are
// declared as strings: they are parsed leniently by the normalizer, so a bad
// date is a missing value rather than a load failure.
func Users() Schema {
	return Schema{
		Name: "users",
		Columns: []Column{
			{Name: UserID, Type: String},
			{Name: FirstActiveTimestamp, Type: String, Nullable: true},
			{Name: AccountCreatedDate, Type: String, Nullable: true},
			{Name: FirstBookingDate, Type: String, Nullable: true},
			{Name: UserGender, Type: String, Nullable: true, Categorical: true},
			{Name: UserAge, Type: Int64, Nullable: true},
			{Name: SignupPlatform, Type: String, Nullable: true, Categorical: true},
			{Name: SignupProcess, Type: String, Nullable: true, Categorical: true},
			{Name: UserLanguage, Type: String, Nullable: true, Categorical: true},
			{Name: MarketingChannel, Type: String, Nullable: true, Categorical: true},
			{Name: MarketingProvider, Type: String, Nullable: true, Categorical: true},
			{Name: FirstTrackedAffil, Type: String, Nullable: true, Categorical: true},
			{Name: SignupApplication, Type: String, Nullable: true, Categorical: true},
			{Name: FirstDevice, Type: String, Nullable: true, Categorical: true},
			{Name: FirstWebBrowser, Type: String, Nullable: true, Categorical: true},
			{Name: DestinationCountry, Type: String, Nullable: true, Categorical: true},
		},
	}
}

// CleanUsers is the user table after normalization.
func CleanUsers() Schema {
	s := Users()
	for i, c := range s.Columns {
		switch c.Name {
		case FirstActiveTimestamp:
			s.Columns[i].Type = Timestamp
		case AccountCreatedDate, FirstBookingDate:
			s.Columns[i].Type = Date
		}
	}
	return s.With(Column{Name: FirstActiveDate, Type: Date, Nullable: true})
}

// Clickstream is the raw clickstream table as it is read from clickstreams.parquet.
func Clickstream() Schema {
	return Schema{
		Name: "clickstream",
		Columns: []Column{
			{Name: SessionUserID, Type: String, Nullable: true},
			{Name: SessionAction, Type: String, Nullable: true, Categorical: true},
			{Name: SessionActionType, Type: String, Nullable: true, Categorical: true},
			{Name: SessionActionDetail, Type: String, Nullable: true, Categorical: true},
			{Name: SessionDeviceType, Type: String, Nullable: true, Categorical: true},
			{Name: TimePassedInSeconds, Type: Float64, Nullable: true},
		},
	}
}

// CleanClickstream is the clickstream table after normalization.
func CleanClickstream() Schema {
	return Clickstream().With(Column{Name: IsNewSession, Type: Bool, Nullable: true})
}
