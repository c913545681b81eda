// Package itemindex keeps a full-text index of reference item descriptions
// so operators can look items up by the words in their info.txt.
package itemindex

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

const defaultLimit = 10

// Doc is the stored form of a reference item.
type Doc struct {
	Name        string `json:"name"`
	Information string `json:"information"`
	Images      int    `json:"images"`
}

// Hit is a search result.
type Hit struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Information string  `json:"information"`
}

type Index struct {
	index bleve.Index
}

// Open opens the index in dir, creating it when absent.
func Open(dir string) (*Index, error) {
	index, err := bleve.Open(dir)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) || errors.Is(err, bleve.ErrorIndexMetaMissing) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create item index dir: %w", err)
		}
		index, err = bleve.New(dir, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open item index: %w", err)
	}
	return &Index{index: index}, nil
}

// NewMemOnly returns an index that lives in memory.
func NewMemOnly() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create item index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexItem adds or replaces the item keyed by name.
func (i *Index) IndexItem(name, description string, images int) error {
	return i.index.Index(name, Doc{Name: name, Information: description, Images: images})
}

func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Search matches q against item names and descriptions.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	nameQuery := bleve.NewMatchQuery(q)
	nameQuery.SetField("name")
	nameQuery.SetBoost(2)
	infoQuery := bleve.NewMatchQuery(q)
	infoQuery.SetField("information")

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(nameQuery, infoQuery), limit, 0, false)
	req.Fields = []string{"name", "information"}
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search item index: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Name: h.ID, Score: h.Score}
		if info, ok := h.Fields["information"].(string); ok {
			hit.Information = info
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *Index) Close() error {
	return i.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"

	docMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Store = true
	nameField.Index = true
	nameField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("name", nameField)

	infoField := bleve.NewTextFieldMapping()
	infoField.Store = true
	infoField.Index = true
	docMapping.AddFieldMappingsAt("information", infoField)

	imagesField := bleve.NewNumericFieldMapping()
	imagesField.Store = true
	imagesField.Index = false
	docMapping.AddFieldMappingsAt("images", imagesField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
