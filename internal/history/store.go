package history

import (
	"path/filepath"

	"github.com/rickgao/market-etl/internal/output"
)

// FileStore keeps one JSON document per index in a directory.
type FileStore struct {
	Dir string
}

// Path returns the file of an index.
func (s FileStore) Path(indexKey string) string {
	return filepath.Join(s.Dir, indexKey+"_history.json")
}

// Load reads the document of an index. found is false when no file exists.
func (s FileStore) Load(indexKey string) (doc *Document, found bool, err error) {
	var d Document
	found, err = output.ReadJSON(s.Path(indexKey), &d)
	if err != nil || !found {
		return nil, found, err
	}
	return &d, true, nil
}

// Save writes a document, replacing any existing file.
func (s FileStore) Save(doc *Document) error {
	return output.WriteJSON(s.Path(doc.Index), doc)
}
