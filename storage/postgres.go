package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// PostgresStore is the persisted property store. It runs on a single
// connection: region resolution and the upsert phase are single-threaded and
// batched commits are the only durability checkpoints.
type PostgresStore struct {
	db      *sql.DB
	audit   *AuditWriter
	logger  *utils.Logger
	schools map[string]int64
}

// NewPostgresStore opens the store, verifies reachability (bounded retry,
// then a fatal pre-flight failure), migrates the schema and seeds the school
// catalogue. The audit writer may be nil in tests.
func NewPostgresStore(dsn string, audit *AuditWriter, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	retry := utils.RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do("postgres ping", db.Ping); err != nil {
		return nil, err
	}

	ps := &PostgresStore{db: db, audit: audit, logger: logger}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := ps.seedSchools(); err != nil {
		return nil, fmt.Errorf("postgres: seed schools: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS regions (
			id       SERIAL PRIMARY KEY,
			name     TEXT       NOT NULL,
			state    VARCHAR(8) NOT NULL,
			postcode INT        NOT NULL,
			UNIQUE (name, state, postcode)
		);

		CREATE TABLE IF NOT EXISTS schools (
			id   SERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS properties (
			id             SERIAL PRIMARY KEY,
			house_id       BIGINT UNIQUE NOT NULL,
			price          INT          NOT NULL DEFAULT 0,
			address        TEXT         NOT NULL DEFAULT '',
			region_id      INT          NOT NULL REFERENCES regions(id),
			bedroom_count  NUMERIC(4,1),
			bathroom_count NUMERIC(4,1),
			parking_count  NUMERIC(4,1),
			property_type  INT          NOT NULL DEFAULT 1,
			available_date TIMESTAMPTZ,
			keywords       TEXT,
			average_score  NUMERIC(6,3),
			description_en TEXT,
			description_cn TEXT,
			url            TEXT,
			published_at   TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS property_school (
			property_id  INT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			school_id    INT NOT NULL REFERENCES schools(id),
			commute_time INT,
			UNIQUE (property_id, school_id)
		);

		CREATE INDEX IF NOT EXISTS idx_properties_region ON properties(region_id);
		CREATE INDEX IF NOT EXISTS idx_properties_price  ON properties(price);
	`)
	return err
}

func (ps *PostgresStore) seedSchools() error {
	ps.schools = make(map[string]int64, len(models.Schools))
	for _, school := range models.Schools {
		if _, err := ps.db.Exec(
			`INSERT INTO schools (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			school.Name,
		); err != nil {
			return err
		}
		var id int64
		if err := ps.db.QueryRow(`SELECT id FROM schools WHERE name = $1`, school.Name).Scan(&id); err != nil {
			return err
		}
		ps.schools[school.Name] = id
	}
	return nil
}

// SchoolIDs returns the seeded school-name to surrogate-id mapping.
func (ps *PostgresStore) SchoolIDs() map[string]int64 {
	return ps.schools
}

// FindRegion returns the surrogate id for an exact identity match, or 0 when
// the region does not exist yet.
func (ps *PostgresStore) FindRegion(name, state string, postcode int) (int64, error) {
	var id int64
	err := ps.db.QueryRow(
		`SELECT id FROM regions WHERE name = $1 AND state = $2 AND postcode = $3`,
		name, state, postcode,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: find region: %w", err)
	}
	return id, nil
}

// CreateRegion inserts a new region and returns its surrogate id.
func (ps *PostgresStore) CreateRegion(name, state string, postcode int) (int64, error) {
	var id int64
	err := ps.db.QueryRow(
		`INSERT INTO regions (name, state, postcode) VALUES ($1, $2, $3) RETURNING id`,
		name, state, postcode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create region: %w", err)
	}
	if ps.audit != nil {
		ps.audit.Record(fmt.Sprintf("INSERT INTO regions (name, state, postcode) VALUES (%s, %s, %d);",
			sqlLiteral(name), sqlLiteral(state), postcode))
	}
	return id, nil
}

// ExistingHouseIDs preloads the business keys already present in the store.
func (ps *PostgresStore) ExistingHouseIDs() ([]int64, error) {
	rows, err := ps.db.Query(`SELECT house_id FROM properties`)
	if err != nil {
		return nil, fmt.Errorf("postgres: existing house ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan house id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchDerived loads the persisted derived fields keyed by business key, for
// the store tier of the carry-forward cache. Only derived fields are
// populated on the returned listings.
func (ps *PostgresStore) FetchDerived() (map[int64]*models.Listing, error) {
	rows, err := ps.db.Query(`
		SELECT house_id, url, description_en, available_date, published_at,
		       keywords, description_cn, average_score
		FROM properties
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch derived: %w", err)
	}
	defer rows.Close()

	derived := make(map[int64]*models.Listing)
	for rows.Next() {
		var (
			houseID                  int64
			url, descEN, kw, kwCN    sql.NullString
			availableAt, publishedAt sql.NullTime
			avgScore                 sql.NullFloat64
		)
		if err := rows.Scan(&houseID, &url, &descEN, &availableAt, &publishedAt, &kw, &kwCN, &avgScore); err != nil {
			return nil, fmt.Errorf("postgres: scan derived: %w", err)
		}

		l := models.NewListing(houseID)
		l.URL = url.String
		l.DescriptionEN = descEN.String
		l.KeywordsEN = kw.String
		l.KeywordsCN = kwCN.String
		if availableAt.Valid {
			l.AvailableDate = availableAt.Time.Format("2006-01-02 15:04:05")
		}
		if publishedAt.Valid {
			l.PublishedAt = publishedAt.Time.Format("2006-01-02 15:04:05")
		}
		if avgScore.Valid {
			if avgScore.Float64 == 0 {
				l.AverageScore = models.Failed()
			} else {
				l.AverageScore = models.Known(avgScore.Float64)
			}
		}
		derived[houseID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	commuteRows, err := ps.db.Query(`
		SELECT p.house_id, s.name, ps.commute_time
		FROM property_school ps
		JOIN properties p ON p.id = ps.property_id
		JOIN schools s ON s.id = ps.school_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch commutes: %w", err)
	}
	defer commuteRows.Close()

	for commuteRows.Next() {
		var (
			houseID int64
			school  string
			minutes sql.NullInt64
		)
		if err := commuteRows.Scan(&houseID, &school, &minutes); err != nil {
			return nil, fmt.Errorf("postgres: scan commute: %w", err)
		}
		l, ok := derived[houseID]
		if !ok {
			continue
		}
		switch {
		case !minutes.Valid:
			// never attempted; leave the zero-value metric
		case minutes.Int64 == 0:
			l.Commutes[school] = models.Failed()
		default:
			l.Commutes[school] = models.Known(float64(minutes.Int64))
		}
	}
	return derived, commuteRows.Err()
}

// Begin starts one upsert batch.
func (ps *PostgresStore) Begin() (Tx, error) {
	tx, err := ps.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgTx{tx: tx, audit: &auditStage{writer: ps.audit}}, nil
}

// Close closes the underlying connection.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// pgTx stages the audit lines of the in-flight row and releases them only at
// the next row boundary or the batch commit, so a rolled-back row leaves no
// trace in the replay log.
type pgTx struct {
	tx    *sql.Tx
	audit *auditStage
}

func (t *pgTx) MarkRow() error {
	t.audit.flush() // previous row completed
	_, err := t.tx.Exec("SAVEPOINT row_sp")
	return err
}

func (t *pgTx) RollbackRow() error {
	t.audit.discard()
	_, err := t.tx.Exec("ROLLBACK TO SAVEPOINT row_sp")
	return err
}

const propertyColumns = `price, address, region_id, bedroom_count, bathroom_count,
	parking_count, property_type, house_id, available_date, keywords,
	average_score, description_en, description_cn, url, published_at`

func (t *pgTx) InsertProperty(l *models.Listing) (int64, error) {
	args := propertyArgs(l)
	var id int64
	err := t.tx.QueryRow(fmt.Sprintf(`
		INSERT INTO properties (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`, propertyColumns), args...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert property %d: %w", l.HouseID, err)
	}

	t.audit.add(fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s);",
		flattenColumns(propertyColumns), literalList(args)))
	return id, nil
}

func (t *pgTx) UpdateProperty(l *models.Listing) (int64, error) {
	args := propertyArgs(l)
	var id int64
	err := t.tx.QueryRow(`
		UPDATE properties SET
			price = $1, address = $2, region_id = $3, bedroom_count = $4,
			bathroom_count = $5, parking_count = $6, property_type = $7,
			available_date = $9, keywords = $10, average_score = $11,
			description_en = $12, description_cn = $13, url = $14, published_at = $15
		WHERE house_id = $8
		RETURNING id
	`, args...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: update property %d: %w", l.HouseID, err)
	}

	t.audit.add(fmt.Sprintf(
		"UPDATE properties SET price = %s, address = %s, region_id = %s, bedroom_count = %s, bathroom_count = %s, parking_count = %s, property_type = %s, available_date = %s, keywords = %s, average_score = %s, description_en = %s, description_cn = %s, url = %s, published_at = %s WHERE house_id = %s;",
		sqlLiteral(args[0]), sqlLiteral(args[1]), sqlLiteral(args[2]), sqlLiteral(args[3]),
		sqlLiteral(args[4]), sqlLiteral(args[5]), sqlLiteral(args[6]), sqlLiteral(args[8]),
		sqlLiteral(args[9]), sqlLiteral(args[10]), sqlLiteral(args[11]), sqlLiteral(args[12]),
		sqlLiteral(args[13]), sqlLiteral(args[14]), sqlLiteral(args[7])))
	return id, nil
}

func (t *pgTx) DeleteCommute(propertyID, schoolID int64) error {
	_, err := t.tx.Exec(
		`DELETE FROM property_school WHERE property_id = $1 AND school_id = $2`,
		propertyID, schoolID,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete commute: %w", err)
	}
	t.audit.add(fmt.Sprintf(
		"DELETE FROM property_school WHERE property_id = %d AND school_id = %d;",
		propertyID, schoolID))
	return nil
}

func (t *pgTx) InsertCommute(propertyID, schoolID int64, minutes *int) error {
	var val any
	if minutes != nil {
		val = *minutes
	}
	_, err := t.tx.Exec(
		`INSERT INTO property_school (property_id, school_id, commute_time) VALUES ($1, $2, $3)`,
		propertyID, schoolID, val,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert commute: %w", err)
	}
	t.audit.add(fmt.Sprintf(
		"INSERT INTO property_school (property_id, school_id, commute_time) VALUES (%d, %d, %s);",
		propertyID, schoolID, sqlLiteral(val)))
	return nil
}

func (t *pgTx) Commit() error {
	t.audit.flush() // last row of the batch completed
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	t.audit.discard()
	return t.tx.Rollback()
}

// propertyArgs builds the positional arguments shared by insert and update.
func propertyArgs(l *models.Listing) []any {
	var avgScore any
	switch l.AverageScore.State {
	case models.MetricKnown:
		avgScore = l.AverageScore.Value
	case models.MetricFailed:
		avgScore = 0.0
	}

	return []any{
		l.PricePerWeek,
		l.AddressLine1,
		l.RegionID,
		l.BedroomCount,
		l.BathroomCount,
		l.ParkingCount,
		l.PropertyType,
		l.HouseID,
		parseTimestamp(l.AvailableDate, nil),
		nullIfEmpty(l.KeywordsEN),
		avgScore,
		nullIfEmpty(l.DescriptionEN),
		nullIfEmpty(l.KeywordsCN),
		nullIfEmpty(l.URL),
		parseTimestamp(l.PublishedAt, time.Now()),
	}
}

// Slash dates are ambiguous; the day-first layout comes before the
// month-first one, so it wins whenever both could parse.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02 15:04:05.999999",
	"02-01-2006",
	"02-01-2006 15:04:05",
}

// parseTimestamp turns the loosely formatted snapshot dates into a driver
// value, falling back to def when nothing matches.
func parseTimestamp(s string, def any) any {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return def
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return def
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sqlLiteral renders a driver value as a SQL literal for the replay log.
func sqlLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05") + "'"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

func literalList(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = sqlLiteral(a)
	}
	return strings.Join(parts, ", ")
}

func flattenColumns(cols string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(cols, "\n", " ")), " ")
}
