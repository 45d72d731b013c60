// Package retriever answers policy questions from an embedded FAQ document.
package retriever

import (
	"bytes"
	_ "embed"
	"sort"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//go:embed swiss_faq.md
var defaultFAQ []byte

// DefaultK is the number of sections returned by Lookup.
const DefaultK = 2

// headingBoost weights terms found in a section title.
const headingBoost = 3

// Section is one heading of the document with the text below it.
type Section struct {
	Title   string
	Content string
	terms   map[string]int
	heading map[string]int
}

func (s Section) String() string {
	if s.Title == "" {
		return s.Content
	}
	return "## " + s.Title + "\n\n" + s.Content
}

// Retriever ranks document sections by lexical overlap with a query.
type Retriever struct {
	sections []Section
}

// New builds a retriever over the embedded FAQ.
func New() *Retriever {
	return NewFromMarkdown(defaultFAQ)
}

// NewFromMarkdown builds a retriever over a markdown document.
func NewFromMarkdown(source []byte) *Retriever {
	return &Retriever{sections: parseSections(source)}
}

// Sections returns the parsed sections.
func (r *Retriever) Sections() []Section {
	return r.sections
}

// Query returns the k best matching sections, best first. Sections with no
// matching term are never returned.
func (r *Retriever) Query(query string, k int) []Section {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		idx   int
		score int
	}
	var ranked []scored
	for i, s := range r.sections {
		score := 0
		for _, t := range terms {
			score += s.terms[t] + headingBoost*s.heading[t]
		}
		if score > 0 {
			ranked = append(ranked, scored{i, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Section, 0, len(ranked))
	for _, sc := range ranked {
		out = append(out, r.sections[sc.idx])
	}
	return out
}

// Lookup returns the DefaultK best sections joined by blank lines.
func (r *Retriever) Lookup(query string) string {
	sections := r.Query(query, DefaultK)
	if len(sections) == 0 {
		return "No relevant policy found."
	}
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n\n")
}

func parseSections(source []byte) []Section {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sections []Section
	var current *Section
	var body strings.Builder

	flush := func() {
		if current != nil && body.Len() > 0 {
			current.Content = strings.TrimSpace(body.String())
			current.terms = countTerms(current.Content)
			current.heading = countTerms(current.Title)
			sections = append(sections, *current)
		}
		body.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			current = &Section{Title: extractText(node, source)}
		default:
			if current == nil {
				current = &Section{}
			}
			if body.Len() > 0 {
				body.WriteString("\n\n")
			}
			body.WriteString(extractText(node, source))
		}
	}
	flush()
	return sections
}

func extractText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		case *ast.ListItem:
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString("- ")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "be": {}, "can": {}, "do": {}, "for": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "what": {}, "when": {}, "with": {}, "you": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// stem strips a few English suffixes so that "cancel", "cancelled" and
// "cancellation" share a term.
func stem(w string) string {
	for _, suffix := range []string{"lations", "lation", "ations", "ation", "ling", "led", "ing", "ed", "es", "s"} {
		if len(w) > len(suffix)+3 && strings.HasSuffix(w, suffix) {
			return w[:len(w)-len(suffix)]
		}
	}
	return w
}

func countTerms(s string) map[string]int {
	counts := make(map[string]int)
	for _, t := range tokenize(s) {
		counts[t]++
	}
	return counts
}
