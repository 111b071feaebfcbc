package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmpark/tokendex/pkg/app/core/exchange"
)

// NopJournal discards every record.
type NopJournal struct{}

func NewNopJournal() *NopJournal          { return &NopJournal{} }
func (*NopJournal) Record(_ string) error { return nil }
func (*NopJournal) Close() error          { return nil }

// FileJournal appends one timestamped line per operation to a plain text
// file. It is an operator-facing audit trail, not a recovery mechanism.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Record(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := fmt.Fprintf(j.f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ exchange.Journal = (*NopJournal)(nil)
var _ exchange.Journal = (*FileJournal)(nil)
