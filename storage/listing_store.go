package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kijiji-watcher/models"
	"kijiji-watcher/utils"
)

const (
	fieldCount       = 9
	legacyFieldCount = 7
	dateLayout       = time.RFC3339Nano

	// maxLineBytes bounds one record; descriptions are the long field.
	maxLineBytes = 4 << 20
)

// ErrMalformedRecord is returned when a line has neither the current nor the
// legacy column count. Loading stops rather than dropping the line, since a
// dropped ad would be reported as new again on the next run.
var ErrMalformedRecord = errors.New("malformed record")

// FileStore keeps listings in a tab-delimited text file, one ad per line,
// with a header row naming the columns.
type FileStore struct {
	path   string
	logger *utils.Logger
}

// NewFileStore returns a store backed by path. The file is not touched until
// Load or Save.
func NewFileStore(path string, logger *utils.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads every listing. A missing file is a first run and yields an empty
// history; any other read or parse failure is returned.
func (s *FileStore) Load() ([]models.Listing, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("[store] %s does not exist yet, starting with empty history", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", s.path, err)
	}
	defer f.Close()

	listings, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", s.path, err)
	}

	s.logger.Info("[store] Loaded %d listings from %s", len(listings), s.path)
	return listings, nil
}

// Save replaces the file with listings. The data goes to a temporary file in
// the same directory first and is renamed into place after fsync.
func (s *FileStore) Save(listings []models.Listing) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp, listings); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: replace %q: %w", s.path, err)
	}

	s.logger.Info("[store] Saved %d listings to %s", len(listings), s.path)
	return nil
}

// decode reads one record per line, fields split on tabs. Quotes carry no
// meaning in this format.
func decode(r io.Reader) ([]models.Listing, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var listings []models.Listing
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		record := strings.Split(text, "\t")
		if line == 1 && isHeader(record) {
			continue
		}

		l, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		listings = append(listings, l)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

func isHeader(record []string) bool {
	if len(record) != fieldCount {
		return false
	}
	for i, name := range models.FieldNames {
		if record[i] != name {
			return false
		}
	}
	return true
}

func parseRecord(record []string) (models.Listing, error) {
	switch len(record) {
	case fieldCount, legacyFieldCount:
	default:
		return models.Listing{}, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(record))
	}

	l := models.Listing{
		Title:       record[0],
		Price:       record[1],
		Location:    record[2],
		PostTime:    record[3],
		Distance:    record[4],
		Link:        record[5],
		Description: record[6],
	}
	if l.Key() == "" {
		return models.Listing{}, fmt.Errorf("%w: empty link", ErrMalformedRecord)
	}
	if len(record) == legacyFieldCount {
		return l, nil
	}

	if record[7] != "" {
		created, err := time.Parse(dateLayout, record[7])
		if err != nil {
			return models.Listing{}, fmt.Errorf("%w: create_date: %v", ErrMalformedRecord, err)
		}
		l.CreateDate = created
	}
	sent, err := strconv.ParseBool(record[8])
	if err != nil {
		return models.Listing{}, fmt.Errorf("%w: email_sent: %v", ErrMalformedRecord, err)
	}
	l.EmailSent = sent
	return l, nil
}

func encode(w io.Writer, listings []models.Listing) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(models.FieldNames, "\t") + "\n"); err != nil {
		return err
	}
	for _, l := range listings {
		if _, err := bw.WriteString(strings.Join(formatRecord(l), "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatRecord(l models.Listing) []string {
	created := ""
	if !l.CreateDate.IsZero() {
		created = l.CreateDate.Format(dateLayout)
	}
	return []string{
		flatten(l.Title),
		flatten(l.Price),
		flatten(l.Location),
		flatten(l.PostTime),
		flatten(l.Distance),
		flatten(l.Link),
		flatten(l.Description),
		created,
		strconv.FormatBool(l.EmailSent),
	}
}

// flatten keeps the one-line-per-record layout: tabs and line breaks become
// single spaces.
func flatten(s string) string {
	if !strings.ContainsAny(s, "\t\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
