package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rental-pipeline/models"
)

// fileDateLayout is the yymmdd tag in snapshot file names.
const fileDateLayout = "060102"

// snapshotHeader is the fixed column order of a snapshot file. Readers match
// columns by name, so files with reordered or missing columns still load.
var snapshotHeader = []string{
	"houseId", "pricePerWeek", "addressLine1", "addressLine2",
	"bedroomCount", "bathroomCount", "parkingCount", "propertyType",
	"url", "description_en", "available_date", "published_at",
	"keywords", "keywords_cn", "average_score",
	"score_1", "score_2", "score_3", "score_4",
	"score_5", "score_6", "score_7", "score_8",
	"commuteTime_UNSW", "commuteTime_USYD", "commuteTime_UTS",
}

// SnapshotPath returns the dated, source-tagged file name for one day's
// snapshot, e.g. data/UNSW_rentdata_250623.csv.
func SnapshotPath(dir, source string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_rentdata_%s.csv", source, day.Format(fileDateLayout)))
}

// LoadSnapshot reads one snapshot file. Rows without a usable houseId are
// skipped; the count of skipped rows is returned alongside the listings.
func LoadSnapshot(path string) ([]*models.Listing, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: read %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, 0, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		if i == 0 {
			// upstream producers write UTF-8 with a BOM, which would
			// otherwise glue onto the first header name
			name = strings.TrimPrefix(name, "\ufeff")
		}
		col[name] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var listings []*models.Listing
	skipped := 0
	for _, row := range records[1:] {
		houseID, err := strconv.ParseInt(field(row, "houseId"), 10, 64)
		if err != nil || houseID == 0 {
			skipped++
			continue
		}

		l := models.NewListing(houseID)
		l.PricePerWeek = safeInt(field(row, "pricePerWeek"))
		l.AddressLine1 = field(row, "addressLine1")
		l.AddressLine2 = field(row, "addressLine2")
		l.BedroomCount = safeFloat(field(row, "bedroomCount"))
		l.BathroomCount = safeFloat(field(row, "bathroomCount"))
		l.ParkingCount = safeFloat(field(row, "parkingCount"))
		l.PropertyType = safeIntDefault(field(row, "propertyType"), models.PropertyTypeHouse)

		l.URL = field(row, "url")
		l.DescriptionEN = field(row, "description_en")
		l.AvailableDate = field(row, "available_date")
		l.PublishedAt = field(row, "published_at")
		l.KeywordsEN = field(row, "keywords")
		l.KeywordsCN = field(row, "keywords_cn")
		l.AverageScore = models.ParseMetric(field(row, "average_score"))
		for i := 0; i < models.TotalScores; i++ {
			l.Scores[i] = safeFloat(field(row, fmt.Sprintf("score_%d", i+1)))
		}
		for _, name := range models.SchoolNames() {
			l.Commutes[name] = models.ParseMetric(field(row, "commuteTime_"+name))
		}

		listings = append(listings, l)
	}
	return listings, skipped, nil
}

// LoadSnapshotPair loads today's snapshot and, when the file exists,
// yesterday's. A missing previous-day file is not an error: the store tier of
// the carry-forward cache covers that case.
func LoadSnapshotPair(dir, source string, today time.Time) (cur, prev []*models.Listing, skipped int, err error) {
	var g errgroup.Group

	g.Go(func() error {
		var loadErr error
		cur, skipped, loadErr = LoadSnapshot(SnapshotPath(dir, source, today))
		return loadErr
	})
	g.Go(func() error {
		var loadErr error
		prev, _, loadErr = LoadSnapshot(SnapshotPath(dir, source, today.AddDate(0, 0, -1)))
		if loadErr != nil && errors.Is(loadErr, fs.ErrNotExist) {
			prev = nil
			return nil
		}
		return loadErr
	})

	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}
	return cur, prev, skipped, nil
}

// WriteSnapshot writes the enriched snapshot using the same schema as the
// input, so tomorrow's run reads it as the previous day.
func WriteSnapshot(path string, listings []*models.Listing) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("snapshot: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(snapshotHeader); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	for _, l := range listings {
		row := []string{
			strconv.FormatInt(l.HouseID, 10),
			strconv.Itoa(l.PricePerWeek),
			l.AddressLine1,
			l.AddressLine2,
			formatFloat(l.BedroomCount),
			formatFloat(l.BathroomCount),
			formatFloat(l.ParkingCount),
			strconv.Itoa(l.PropertyType),
			l.URL,
			l.DescriptionEN,
			l.AvailableDate,
			l.PublishedAt,
			l.KeywordsEN,
			l.KeywordsCN,
			l.AverageScore.String(),
		}
		for i := 0; i < models.TotalScores; i++ {
			row = append(row, formatFloat(l.Scores[i]))
		}
		for _, name := range models.SchoolNames() {
			row = append(row, l.Commutes[name].String())
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("snapshot: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func safeInt(s string) int {
	return safeIntDefault(s, 0)
}

func safeIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

func safeFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
