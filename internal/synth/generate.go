package synth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/paveg/tripclean/internal/io"
)

// Output file names written by Generate.
const (
	UsersFile       = "user.csv"
	ClickstreamFile = "clickstreams.parquet"
)

// Options controls the generated data.
type Options struct {
	Users int
	// MaxEvents bounds the clickstream events of one user.
	MaxEvents int
	// DirtyRate is the probability of each injected defect, between 0 and 1.
	DirtyRate float64
	Seed      int64
}

// DefaultOptions returns a small, fairly dirty data set.
func DefaultOptions() Options {
	return Options{Users: 1000, MaxEvents: 20, DirtyRate: 0.05, Seed: 1}
}

var (
	genders      = []string{"FEMALE", "MALE", "OTHER", "-unknown-"}
	platforms    = []string{"basic", "facebook", "google"}
	languages    = []string{"en", "en", "en", "fr", "de", "es", "zh", "ko"}
	channels     = []string{"direct", "sem-brand", "sem-non-brand", "seo", "content", "other"}
	providers    = []string{"direct", "google", "other", "craigslist", "bing", "facebook", "vast", "padmapper"}
	affiliates   = []string{"untracked", "linked", "omg", "tracked-other", "product"}
	applications = []string{"Web", "Web", "Web", "iOS", "Android", "Moweb"}
	devices      = []string{"Mac Desktop", "Windows Desktop", "iPhone", "iPad", "Android Phone", "Other/Unknown"}
	browsers     = []string{"Chrome", "Chrome", "Safari", "Firefox", "IE", "Mobile Safari", "-unknown-"}
	rareBrowsers = []string{"Opera", "Silk", "Maxthon", "IceWeasel", "SeaMonkey", "Camino"}
	destinations = []string{"US", "US", "US", "FR", "IT", "GB", "ES", "CA", "DE", "NL", "AU", "PT", "other"}
	unknownCodes = []string{"ZZ", "XX", "UK", "EU"}

	actions       = []string{"show", "index", "search_results", "personalize", "search", "ajax_refresh_subtotal", "similar_listings", "-unknown-"}
	actionTypes   = []string{"view", "data", "click", "submit", "message_post", "-unknown-"}
	actionDetails = []string{"p3", "view_search_results", "wishlist_content_update", "change_trip_characteristics", "-unknown-"}
	clickDevices  = []string{"Mac Desktop", "Windows Desktop", "iPhone", "Android Phone", "iPad Tablet", "-unknown-"}
)

var (
	firstCreated = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	lastCreated  = time.Date(2014, 6, 30, 0, 0, 0, 0, time.UTC)
)

// Generator produces raw rows. The same seed yields the same rows.
type Generator struct {
	f    *gofakeit.Faker
	opts Options
}

// NewGenerator creates a generator for opts.
func NewGenerator(opts Options) *Generator {
	return &Generator{f: gofakeit.New(opts.Seed), opts: opts}
}

func (g *Generator) dirty() bool {
	return g.f.Float64Range(0, 1) < g.opts.DirtyRate
}

// UserRows generates opts.Users rows, then appends exact duplicates of some
// of them.
func (g *Generator) UserRows() []UserRow {
	rows := make([]UserRow, 0, g.opts.Users)
	for i := 0; i < g.opts.Users; i++ {
		rows = append(rows, g.user(i))
	}
	n := len(rows)
	for i := 0; i < n; i++ {
		if g.dirty() {
			rows = append(rows, rows[i])
		}
	}
	return rows
}

func (g *Generator) user(i int) UserRow {
	f := g.f
	created := f.DateRange(firstCreated, lastCreated).Truncate(24 * time.Hour)
	active := created.Add(-time.Duration(f.Number(0, 2*24*3600)) * time.Second)

	r := UserRow{
		ID:          fmt.Sprintf("%s%05d", strings.ToLower(f.LetterN(5)), i),
		FirstActive: active.Format("20060102150405"),
		Created:     created.Format("2006-01-02"),
		Gender:      f.RandomString(genders),
		Platform:    f.RandomString(platforms),
		Process:     fmt.Sprint(f.RandomInt([]int{0, 0, 0, 3, 12, 25})),
		Language:    f.RandomString(languages),
		Channel:     f.RandomString(channels),
		Provider:    f.RandomString(providers),
		Affiliate:   f.RandomString(affiliates),
		Application: f.RandomString(applications),
		Device:      f.RandomString(devices),
		Browser:     f.RandomString(browsers),
		Destination: "NDF",
	}
	if f.Float64Range(0, 1) < 0.7 {
		age := int64(f.Number(18, 80))
		r.Age = &age
	}
	if f.Float64Range(0, 1) < 0.45 {
		r.Booking = created.AddDate(0, 0, f.Number(0, 120)).Format("2006-01-02")
		r.Destination = f.RandomString(destinations)
	}

	switch {
	case g.dirty():
		r.Gender = strings.ToLower(r.Gender)
	case g.dirty():
		r.Gender = " " + r.Gender + " "
	}
	if g.dirty() {
		age := int64(f.RandomInt([]int{2014, 2013, 5, 104, 150}))
		r.Age = &age
	}
	if g.dirty() {
		r.FirstActive += ".0"
	}
	if g.dirty() {
		r.FirstActive = created.AddDate(0, 0, f.Number(1, 30)).Format("20060102150405")
	}
	if g.dirty() && r.Booking != "" {
		r.Booking = created.AddDate(0, 0, -f.Number(1, 60)).Format("2006-01-02")
	}
	if g.dirty() && r.Booking == "" {
		r.Destination = f.RandomString(destinations[:12])
	}
	if g.dirty() {
		r.Destination = f.RandomString(unknownCodes)
	}
	if g.dirty() {
		r.Browser = f.RandomString(rareBrowsers)
	}
	if g.dirty() {
		r.Created = ""
	}
	return r
}

// ClickRows generates the events of users.
func (g *Generator) ClickRows(users []UserRow) []ClickRow {
	f := g.f
	var rows []ClickRow
	for _, u := range users {
		if f.Float64Range(0, 1) < 0.4 {
			continue
		}
		events := f.Number(1, max(1, g.opts.MaxEvents))
		for e := 0; e < events; e++ {
			secs := float64(f.Number(1, 4000))
			r := ClickRow{
				UserID:       u.ID,
				Action:       f.RandomString(actions),
				ActionType:   f.RandomString(actionTypes),
				ActionDetail: f.RandomString(actionDetails),
				Device:       f.RandomString(clickDevices),
				Seconds:      &secs,
			}
			switch {
			case g.dirty():
				r.Seconds = nil
			case g.dirty():
				v := float64(f.RandomInt([]int{0, -1, -30, 1_500_000, 2_000_000}))
				r.Seconds = &v
			}
			if g.dirty() {
				r.UserID = ""
			}
			rows = append(rows, r)
			if g.dirty() {
				rows = append(rows, r)
			}
		}
	}
	return rows
}

// Result describes the files written by Generate.
type Result struct {
	UsersPath       string
	ClickstreamPath string
	Users           int
	Events          int
}

// Generate writes user.csv and clickstreams.parquet into dir.
func Generate(ctx context.Context, dir string, opts Options) (*Result, error) {
	if opts.Users < 1 {
		return nil, fmt.Errorf("users must be at least 1, got %d", opts.Users)
	}
	if opts.DirtyRate < 0 || opts.DirtyRate > 1 {
		return nil, fmt.Errorf("dirty rate must be within [0, 1], got %g", opts.DirtyRate)
	}

	mem := memory.NewGoAllocator()
	g := NewGenerator(opts)
	res := &Result{
		UsersPath:       filepath.Join(dir, UsersFile),
		ClickstreamPath: filepath.Join(dir, ClickstreamFile),
	}

	userRows := g.UserRows()
	users := UsersFrame(mem, userRows...)
	defer users.Release()
	if err := io.WriteCSVFile(res.UsersPath, users, io.DefaultCSVOptions()); err != nil {
		return nil, err
	}
	res.Users = users.Len()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clicks := ClickstreamFrame(mem, g.ClickRows(userRows)...)
	defer clicks.Release()
	if err := io.WriteParquetFile(res.ClickstreamPath, clicks, io.DefaultParquetOptions()); err != nil {
		return nil, err
	}
	res.Events = clicks.Len()
	return res, nil
}
