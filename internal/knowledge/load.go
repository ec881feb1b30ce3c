// Package knowledge turns FAQ and documentation files into retrieval
// documents and loads them, embedded, into an index.
package knowledge

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/retrieval"
)

// Metadata keys set on loaded documents, besides retrieval.MetaType and
// retrieval.MetaTitle.
const (
	MetaKind   = "kind"
	MetaSource = "source"
	MetaChunk  = "chunk_index"
)

// Document kinds.
const (
	KindFAQ           = "faq"
	KindDocumentation = "documentation"
)

// Chunking defaults for documentation files.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
	maxTitle     = 100
)

// FAQ is one question and its answer.
type FAQ struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// categoryAliases maps the French section names used in FAQ files to
// intent categories.
var categoryAliases = map[string]string{
	"facturation": lexicon.Billing,
	"technique":   lexicon.Technical,
	"forfait":     lexicon.Plan,
	"forfaits":    lexicon.Plan,
	"resiliation": lexicon.Cancellation,
	"résiliation": lexicon.Cancellation,
	"livraison":   lexicon.Delivery,
	"commande":    lexicon.Order,
}

// Category returns the intent category for an FAQ section name.
func Category(section string) string {
	s := strings.ToLower(strings.TrimSpace(section))
	if c, ok := categoryAliases[s]; ok {
		return c
	}
	return s
}

var namespace = uuid.NameSpaceURL

func docID(source string, parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(source+"#"+strings.Join(parts, "#"))).String()
}

// LoadFile reads one file: *.json, *.yaml and *.yml as FAQ files, *.md and
// *.txt as documentation. Other extensions yield no documents.
func LoadFile(fsys fs.FS, path string) ([]retrieval.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains([]string{".json", ".yaml", ".yml", ".md", ".txt"}, ext) {
		return nil, nil
	}
	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch ext {
	case ".json", ".yaml", ".yml":
		faqs := map[string][]FAQ{}
		if ext == ".json" {
			err = json.Unmarshal(b, &faqs)
		} else {
			err = yaml.Unmarshal(b, &faqs)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return FAQDocuments(path, faqs), nil
	default:
		return TextDocuments(path, string(b)), nil
	}
}

// FAQDocuments converts FAQ sections into documents, one per question.
// Sections are emitted in sorted order so IDs and ordering are stable.
func FAQDocuments(source string, faqs map[string][]FAQ) []retrieval.Document {
	sections := make([]string, 0, len(faqs))
	for s := range faqs {
		sections = append(sections, s)
	}
	slices.Sort(sections)

	var docs []retrieval.Document
	for _, section := range sections {
		for i, f := range faqs[section] {
			if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
				continue
			}
			docs = append(docs, retrieval.Document{
				ID:      docID(source, section, strconv.Itoa(i)),
				Content: "Q: " + f.Question + "\nR: " + f.Answer,
				Metadata: map[string]string{
					retrieval.MetaType:  Category(section),
					retrieval.MetaTitle: Title(f.Question),
					MetaKind:            KindFAQ,
					MetaSource:          filepath.Base(source),
				},
			})
		}
	}
	return docs
}

// TextDocuments splits a documentation file into overlapping chunks.
func TextDocuments(source, text string) []retrieval.Document {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	var docs []retrieval.Document
	for i, c := range Chunk(text, ChunkSize, ChunkOverlap) {
		docs = append(docs, retrieval.Document{
			ID:      docID(source, strconv.Itoa(i)),
			Content: c,
			Metadata: map[string]string{
				retrieval.MetaType:  KindDocumentation,
				retrieval.MetaTitle: fmt.Sprintf("%s - Partie %d", stem, i+1),
				MetaKind:            KindDocumentation,
				MetaSource:          filepath.Base(source),
				MetaChunk:           strconv.Itoa(i),
			},
		})
	}
	return docs
}

// Title cuts a question to 100 runes followed by "...".
func Title(q string) string {
	if utf8.RuneCountInString(q) <= maxTitle {
		return q
	}
	return string([]rune(q)[:maxTitle]) + "..."
}

// Chunk splits text into pieces of at most size runes, each starting
// overlap runes before the end of the previous one. A piece ends after the
// last '.', '!' or '?' in its window when that lies past the window's
// midpoint. Blank pieces are dropped.
func Chunk(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	r := []rune(text)
	if size <= 0 || len(r) <= size {
		return []string{strings.TrimSpace(text)}
	}
	if overlap < 0 || overlap >= size/2 {
		overlap = 0
	}

	var out []string
	for start := 0; start < len(r); {
		end := start + size
		if end >= len(r) {
			end = len(r)
		} else if cut := lastSentenceEnd(r[start:end]); cut > size/2 {
			end = start + cut + 1
		}
		if c := strings.TrimSpace(string(r[start:end])); c != "" {
			out = append(out, c)
		}
		if end == len(r) {
			break
		}
		start = end - overlap
	}
	return out
}

func lastSentenceEnd(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		switch r[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
