package store

import (
	"time"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

// ExportHistory assembles the full answer history with per-subject mastery
// for the export command.
func (s *Store) ExportHistory() (model.HistoryExport, error) {
	var export model.HistoryExport

	subjects, err := s.MasteryBySubject()
	if err != nil {
		return export, err
	}
	records, err := s.ListRecords()
	if err != nil {
		return export, err
	}

	export.ExportedAt = time.Now()
	export.Subjects = subjects
	export.Records = records
	return export, nil
}
