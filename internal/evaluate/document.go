package evaluate

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/pagesentry/pagesentry/internal/extract"
)

// MaxHTMLSize limits document input to 10MB to prevent memory exhaustion.
const MaxHTMLSize = 10 * 1024 * 1024

// XPathPrefix marks a chain entry as an xpath expression instead of css.
const XPathPrefix = "xpath:"

var sanitizer = bluemonday.UGCPolicy()

// Document is a static page evaluator over parsed HTML. It satisfies
// extract.Evaluator but not extract.Mutator: a parsed document cannot be
// scrolled or reloaded, so retry strategies are a no-op against it.
type Document struct {
	url string
	raw string
	doc *goquery.Document

	nodeOnce sync.Once
	node     *html.Node
	nodeErr  error
}

// ParseDocument parses HTML into a Document, detecting and converting the
// charset first.
func ParseDocument(rawHTML, pageURL string) (*Document, error) {
	if rawHTML == "" {
		return nil, fmt.Errorf("empty document")
	}
	if len(rawHTML) > MaxHTMLSize {
		return nil, fmt.Errorf("document exceeds maximum size of %d bytes", MaxHTMLSize)
	}

	doc, err := goquery.NewDocumentFromReader(decodeHTML(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{url: pageURL, raw: rawHTML, doc: doc}, nil
}

// decodeHTML wraps raw HTML in a utf-8 reader based on detected charset.
func decodeHTML(rawHTML string) *strings.Reader {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest([]byte(rawHTML))
	if err != nil || result == nil || strings.EqualFold(result.Charset, "utf-8") {
		return strings.NewReader(rawHTML)
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader([]byte(rawHTML)), strings.ToLower(result.Charset))
	if err != nil {
		return strings.NewReader(rawHTML)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(utf8Reader); err != nil {
		return strings.NewReader(rawHTML)
	}
	return strings.NewReader(buf.String())
}

func (d *Document) URL(ctx context.Context) (string, error) { return d.url, nil }

func (d *Document) Title(ctx context.Context) (string, error) {
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

// Query evaluates one selector and extracts the requested field from the
// first match. Selector syntax errors surface as errors so the chain
// resolver can count them as misses.
func (d *Document) Query(ctx context.Context, selector, field string) (string, bool, error) {
	if strings.HasPrefix(selector, XPathPrefix) {
		return d.queryXPath(strings.TrimPrefix(selector, XPathPrefix), field)
	}

	sel, err := safeFind(d.doc, selector)
	if err != nil {
		return "", false, err
	}
	if sel.Length() == 0 {
		return "", false, nil
	}

	first := sel.First()
	switch {
	case field == extract.FieldText || field == "":
		return normalizeWhitespace(first.Text()), true, nil
	case field == extract.FieldHTML:
		h, err := goquery.OuterHtml(first)
		if err != nil {
			return "", false, fmt.Errorf("render html: %w", err)
		}
		return h, true, nil
	case strings.HasPrefix(field, extract.FieldAttrPrefix):
		name := strings.TrimPrefix(field, extract.FieldAttrPrefix)
		v, ok := first.Attr(name)
		return v, ok, nil
	default:
		return "", false, fmt.Errorf("unknown field %q", field)
	}
}

// xpathRoot lazily parses the raw markup into an html.Node tree for
// htmlquery. Most chains are pure css; the second parse only happens when an
// xpath entry is actually evaluated.
func (d *Document) xpathRoot() (*html.Node, error) {
	d.nodeOnce.Do(func() {
		d.node, d.nodeErr = html.Parse(decodeHTML(d.raw))
	})
	if d.nodeErr != nil {
		return nil, fmt.Errorf("parse for xpath: %w", d.nodeErr)
	}
	return d.node, nil
}

func (d *Document) queryXPath(expr, field string) (string, bool, error) {
	node, err := d.xpathRoot()
	if err != nil {
		return "", false, err
	}
	found, err := htmlquery.Query(node, expr)
	if err != nil {
		return "", false, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if found == nil {
		return "", false, nil
	}

	switch {
	case field == extract.FieldText || field == "":
		return normalizeWhitespace(htmlquery.InnerText(found)), true, nil
	case field == extract.FieldHTML:
		return htmlquery.OutputHTML(found, true), true, nil
	case strings.HasPrefix(field, extract.FieldAttrPrefix):
		name := strings.TrimPrefix(field, extract.FieldAttrPrefix)
		for _, attr := range found.Attr {
			if attr.Key == name {
				return attr.Val, true, nil
			}
		}
		return "", false, nil
	default:
		return "", false, fmt.Errorf("unknown field %q", field)
	}
}

// Count returns how many elements match the selector.
func (d *Document) Count(ctx context.Context, selector string) (int, error) {
	if strings.HasPrefix(selector, XPathPrefix) {
		node, err := d.xpathRoot()
		if err != nil {
			return 0, err
		}
		nodes, err := htmlquery.QueryAll(node, strings.TrimPrefix(selector, XPathPrefix))
		if err != nil {
			return 0, fmt.Errorf("xpath %q: %w", selector, err)
		}
		return len(nodes), nil
	}

	sel, err := safeFind(d.doc, selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

// Text returns the whole page text with collapsed whitespace.
func (d *Document) Text(ctx context.Context) (string, error) {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return normalizeWhitespace(d.doc.Text()), nil
	}
	return normalizeWhitespace(body.Text()), nil
}

// HTML returns the original markup, unmodified.
func (d *Document) HTML() string { return d.raw }

// SanitizedHTML returns the markup with scripts, event handlers, and other
// unsafe constructs stripped. Used for DOM snapshots that get rendered in
// review tooling.
func (d *Document) SanitizedHTML() string {
	return sanitizer.Sanitize(d.raw)
}

// DOM satisfies the artifact source contract. Snapshots of static documents
// land in review tooling, so the markup is sanitized first.
func (d *Document) DOM(ctx context.Context) (string, error) {
	return d.SanitizedHTML(), nil
}

// Screenshot is unsupported without a live session.
func (d *Document) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("screenshot requires a live session")
}

// PDF is unsupported without a live session.
func (d *Document) PDF(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("pdf render requires a live session")
}

// safeFind evaluates a css selector without letting a malformed one panic.
func safeFind(doc *goquery.Document, selector string) (s *goquery.Selection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid selector %q: %v", selector, r)
		}
	}()
	return doc.Find(selector), nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
