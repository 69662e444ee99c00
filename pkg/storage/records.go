package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/dernek/pkg/storage")

// Record is one table row keyed by column name
type Record map[string]interface{}

// Table describes a resource table. Only listed columns can be written or filtered.
type Table struct {
	Name string
	// Columns are the writable columns
	Columns []string
	// Searchable columns are matched by the free-text search
	Searchable []string
	// Filterable columns accept exact-match filters
	Filterable []string
	// Defaults fill writable columns missing from an insert
	Defaults      map[string]interface{}
	NotFoundTitle string
}

// Resource tables
var (
	Members = Table{
		Name:          "members",
		Columns:       []string{"ad", "soyad", "email", "telefon", "tc_kimlik_no", "adres", "uyelik_tarihi", "durum"},
		Searchable:    []string{"ad", "soyad", "email"},
		Filterable:    []string{"durum"},
		Defaults:      map[string]interface{}{"durum": "aktif"},
		NotFoundTitle: "Üye bulunamadı",
	}

	Donations = Table{
		Name:          "donations",
		Columns:       []string{"bagisci_adi", "email", "telefon", "tutar", "tur", "amac", "aciklama", "bagis_tarihi"},
		Searchable:    []string{"bagisci_adi", "email", "aciklama"},
		Filterable:    []string{"amac", "tur"},
		NotFoundTitle: "Bağış bulunamadı",
	}

	SocialAid = Table{
		Name:          "social_aid_applications",
		Columns:       []string{"beneficiary_id", "yardim_turu", "talep_edilen_tutar", "gerekce", "durum", "basvuru_tarihi"},
		Searchable:    []string{"gerekce"},
		Filterable:    []string{"durum", "beneficiary_id", "yardim_turu"},
		Defaults:      map[string]interface{}{"durum": "beklemede"},
		NotFoundTitle: "Başvuru bulunamadı",
	}

	Documents = Table{
		Name:          "documents",
		Columns:       []string{"beneficiary_id", "document_type", "file_name", "object_key", "content_type", "size_bytes", "checksum", "uploaded_by"},
		Searchable:    []string{"file_name"},
		Filterable:    []string{"beneficiary_id", "document_type"},
		NotFoundTitle: "Doküman bulunamadı",
	}
)

func (t Table) writable(column string) bool {
	return contains(t.Columns, column)
}

func (t Table) filterable(column string) bool {
	return contains(t.Filterable, column)
}

// ListQuery selects a page of rows
type ListQuery struct {
	Limit   int
	Offset  int
	Search  string
	Filters map[string]string
}

// RecordStore runs CRUD queries against one table.
// Queries are written with '?' placeholders and rebound for the driver in use.
type RecordStore struct {
	db      *sqlx.DB
	table   Table
	metrics *observability.OTelMetrics
	now     func() time.Time
}

// NewRecordStore creates a store for table
func NewRecordStore(db *sqlx.DB, table Table) *RecordStore {
	return &RecordStore{db: db, table: table, now: time.Now}
}

// WithMetrics records operation durations on m
func (s *RecordStore) WithMetrics(m *observability.OTelMetrics) *RecordStore {
	s.metrics = m
	return s
}

// Table returns the table the store operates on
func (s *RecordStore) Table() Table {
	return s.table
}

// List returns the matching rows, newest first, and the total number of matches
func (s *RecordStore) List(ctx context.Context, q ListQuery) (rows []Record, total int, err error) {
	ctx, finish := s.observe(ctx, "list")
	defer func() { finish(err) }()

	where, args, err := s.where(q)
	if err != nil {
		return nil, 0, err
	}

	countQuery := s.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table.Name, where))
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", s.table.Name, err)
	}

	query := s.db.Rebind(fmt.Sprintf("SELECT * FROM %s%s ORDER BY id DESC LIMIT ? OFFSET ?", s.table.Name, where))
	result, err := s.db.QueryxContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", s.table.Name, err)
	}
	defer result.Close()

	rows = []Record{}
	for result.Next() {
		row := Record{}
		if err := result.MapScan(row); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s row: %w", s.table.Name, err)
		}
		rows = append(rows, normalize(row))
	}
	if err := result.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s: %w", s.table.Name, err)
	}

	return rows, total, nil
}

// Get returns the row with id
func (s *RecordStore) Get(ctx context.Context, id int64) (row Record, err error) {
	ctx, finish := s.observe(ctx, "get")
	defer func() { finish(err) }()

	query := s.db.Rebind(fmt.Sprintf("SELECT * FROM %s WHERE id = ?", s.table.Name))
	return s.scanOne(s.db.QueryRowxContext(ctx, query, id))
}

// Insert creates a row and returns it as stored
func (s *RecordStore) Insert(ctx context.Context, values Record) (row Record, err error) {
	ctx, finish := s.observe(ctx, "insert")
	defer func() { finish(err) }()

	merged := Record{}
	for column, value := range s.table.Defaults {
		merged[column] = value
	}
	for column, value := range values {
		merged[column] = value
	}

	columns, err := s.columns(merged)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, apierror.Invalid("body", "En az bir alan gerekli")
	}

	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		placeholders[i] = "?"
		args[i] = merged[column]
	}

	query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		s.table.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", ")))
	return s.scanOne(s.db.QueryRowxContext(ctx, query, args...))
}

// Update changes the given columns of the row with id and returns the updated row
func (s *RecordStore) Update(ctx context.Context, id int64, values Record) (row Record, err error) {
	ctx, finish := s.observe(ctx, "update")
	defer func() { finish(err) }()

	columns, err := s.columns(values)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, apierror.Invalid("body", "En az bir alan gerekli")
	}

	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, column := range columns {
		sets[i] = column + " = ?"
		args = append(args, values[column])
	}
	args = append(args, id)

	query := s.db.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = ? RETURNING *",
		s.table.Name, strings.Join(sets, ", ")))
	return s.scanOne(s.db.QueryRowxContext(ctx, query, args...))
}

// Delete removes the row with id
func (s *RecordStore) Delete(ctx context.Context, id int64) (err error) {
	ctx, finish := s.observe(ctx, "delete")
	defer func() { finish(err) }()

	query := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table.Name))
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(fmt.Errorf("failed to delete from %s: %w", s.table.Name, err), s.table)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound(s.table)
	}
	return nil
}

// Ping checks the database connection
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *RecordStore) scanOne(row *sqlx.Row) (Record, error) {
	rec := Record{}
	if err := row.MapScan(rec); err != nil {
		return nil, classify(fmt.Errorf("%s: %w", s.table.Name, err), s.table)
	}
	return normalize(rec), nil
}

// columns returns the sorted keys of values, rejecting columns the table does not allow
func (s *RecordStore) columns(values Record) ([]string, error) {
	var verr apierror.ValidationError
	columns := make([]string, 0, len(values))
	for column := range values {
		if !s.table.writable(column) {
			verr.Add(column, "Bilinmeyen alan")
			continue
		}
		columns = append(columns, column)
	}
	if err := verr.OrNil(); err != nil {
		sort.Slice(verr.Issues, func(i, j int) bool { return verr.Issues[i].Field < verr.Issues[j].Field })
		return nil, err
	}
	sort.Strings(columns)
	return columns, nil
}

func (s *RecordStore) where(q ListQuery) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}
	var verr apierror.ValidationError

	keys := make([]string, 0, len(q.Filters))
	for key := range q.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := q.Filters[key]
		if value == "" {
			continue
		}
		if !s.table.filterable(key) {
			verr.Add(key, "Bu alana göre filtrelenemez")
			continue
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, value)
	}
	if err := verr.OrNil(); err != nil {
		return "", nil, err
	}

	if search := strings.TrimSpace(q.Search); search != "" && len(s.table.Searchable) > 0 {
		like := "LIKE"
		if s.db.DriverName() == "postgres" {
			like = "ILIKE"
		}
		matches := make([]string, len(s.table.Searchable))
		for i, column := range s.table.Searchable {
			matches[i] = fmt.Sprintf("%s %s ?", column, like)
			args = append(args, "%"+search+"%")
		}
		clauses = append(clauses, "("+strings.Join(matches, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *RecordStore) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "RecordStore."+operation)
	span.SetAttributes(
		attribute.String("db.system", s.db.DriverName()),
		attribute.String("db.sql.table", s.table.Name),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordStoreOperation(ctx, s.table.Name, operation, s.now().Sub(start), err)
	}
}

// normalize turns driver byte slices into strings so rows encode as JSON text
func normalize(row Record) Record {
	for column, value := range row {
		if b, ok := value.([]byte); ok {
			row[column] = string(b)
		}
	}
	return row
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
