package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping shared by file and collection
// documents. Identity fields use the keyword analyzer so membership queries
// by type and owner are exact.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Analyzer = en.AnalyzerName
	name.Store = true
	name.IncludeTermVectors = true
	doc.AddFieldMappingsAt("name", name)

	body := bleve.NewTextFieldMapping()
	body.Analyzer = en.AnalyzerName
	body.Store = false
	doc.AddFieldMappingsAt("body", body)

	slug := bleve.NewTextFieldMapping()
	slug.Analyzer = simple.Name
	slug.Store = true
	doc.AddFieldMappingsAt("slug", slug)

	for _, field := range []string{"id", "type", "owner_id", "cid"} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = true
		doc.AddFieldMappingsAt(field, kw)
	}

	for _, field := range []string{"created_at", "updated_at"} {
		num := bleve.NewNumericFieldMapping()
		num.Store = true
		doc.AddFieldMappingsAt(field, num)
	}

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
