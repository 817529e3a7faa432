// Package jsonld provides the value context used when interpreting CSVW
// metadata documents: a base URL, a default language, and the prefix set of
// the CSVW initial context, with IRI expansion and compaction against them.
package jsonld

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"go.jacobcolvin.com/csvw/vocab"
)

// Sentinel errors returned by context parsing and IRI expansion.
var (
	ErrInvalidContext = errors.New("invalid context")
	ErrInvalidIRI     = errors.New("invalid iri")
)

// initialPrefixes is the prefix subset of the CSVW initial context that the
// processor expands term IRIs against.
var initialPrefixes = map[string]string{
	"csvw":    vocab.CSVWNamespace,
	"xsd":     vocab.XSDNamespace,
	"rdf":     vocab.RDFNamespace,
	"rdfs":    vocab.RDFSNamespace,
	"dc":      "http://purl.org/dc/terms/",
	"dc11":    "http://purl.org/dc/elements/1.1/",
	"dcat":    "http://www.w3.org/ns/dcat#",
	"dcterms": "http://purl.org/dc/terms/",
	"foaf":    "http://xmlns.com/foaf/0.1/",
	"oa":      "http://www.w3.org/ns/oa#",
	"org":     "http://www.w3.org/ns/org#",
	"owl":     "http://www.w3.org/2002/07/owl#",
	"prov":    "http://www.w3.org/ns/prov#",
	"qb":      "http://purl.org/linked-data/cube#",
	"schema":  "http://schema.org/",
	"skos":    "http://www.w3.org/2004/02/skos/core#",
	"time":    "http://www.w3.org/2006/time#",
	"vcard":   "http://www.w3.org/2006/vcard/ns#",
	"void":    "http://rdfs.org/ns/void#",
	"xhv":     "http://www.w3.org/1999/xhtml/vocab#",
}

// Context is the value context a metadata document is interpreted in.
// It is immutable after parsing; [Context.Rebase] derives a copy with a new
// base, which is the only per-table variation CSVW allows.
type Context struct {
	base     *url.URL
	language string
	prefixes map[string]string
}

// New creates a Context with the given base URL and the CSVW initial
// prefixes. An empty base is allowed; relative links then stay relative
// until a base is supplied via [Context.Rebase].
func New(base string) (*Context, error) {
	c := &Context{
		language: "und",
		prefixes: initialPrefixes,
	}

	if base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("%w: base %q: %w", ErrInvalidContext, base, err)
		}

		c.base = u
	}

	return c, nil
}

// Parse interprets the @context value of a metadata document. Accepted
// forms: the bare CSVW namespace string, an object carrying @base and
// @language, or an array whose members are one of those. A warning sink
// receives recoverable problems; the offending member is dropped.
func Parse(value any, base string, warn func(string)) (*Context, error) {
	if warn == nil {
		warn = func(string) {}
	}

	c, err := New(base)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case nil:
		return c, nil
	case string:
		if v != vocab.ContextIRI && v != vocab.CSVWNamespace {
			return nil, fmt.Errorf("%w: @context %q is not the csvw namespace", ErrInvalidContext, v)
		}

		return c, nil
	case map[string]any:
		return c, c.applyObject(v, warn)
	case []any:
		sawNamespace := false

		for _, member := range v {
			switch m := member.(type) {
			case string:
				if m != vocab.ContextIRI && m != vocab.CSVWNamespace {
					return nil, fmt.Errorf("%w: @context member %q is not the csvw namespace", ErrInvalidContext, m)
				}

				sawNamespace = true
			case map[string]any:
				err := c.applyObject(m, warn)
				if err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: @context member of type %T", ErrInvalidContext, member)
			}
		}

		if !sawNamespace {
			return nil, fmt.Errorf("%w: @context array lacks the csvw namespace", ErrInvalidContext)
		}

		return c, nil
	}

	return nil, fmt.Errorf("%w: @context of type %T", ErrInvalidContext, value)
}

func (c *Context) applyObject(obj map[string]any, warn func(string)) error {
	for key, val := range obj {
		switch key {
		case "@base":
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("%w: @base of type %T", ErrInvalidContext, val)
			}

			u, err := url.Parse(s)
			if err != nil {
				return fmt.Errorf("%w: @base %q: %w", ErrInvalidContext, s, err)
			}

			if c.base != nil {
				u = c.base.ResolveReference(u)
			}

			c.base = u

		case "@language":
			s, ok := val.(string)
			if !ok || !ValidLanguage(s) {
				warn(fmt.Sprintf("invalid @language %v", val))

				continue
			}

			c.language = s

		default:
			return fmt.Errorf("%w: unknown @context key %q", ErrInvalidContext, key)
		}
	}

	return nil
}

// Base returns the base URL, or nil when none is set.
func (c *Context) Base() *url.URL {
	return c.base
}

// Language returns the default language, "und" when unset.
func (c *Context) Language() string {
	return c.language
}

// Rebase derives a Context whose base is the given absolute URL. The
// receiver is unchanged.
func (c *Context) Rebase(base string) (*Context, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: rebase %q: %w", ErrInvalidContext, base, err)
	}

	if c.base != nil {
		u = c.base.ResolveReference(u)
	}

	return &Context{
		base:     u,
		language: c.language,
		prefixes: c.prefixes,
	}, nil
}

// ResolveURL resolves a link value against the base URL and returns its
// absolute form. Without a base, the value is returned unchanged.
func (c *Context) ResolveURL(link string) string {
	if c.base == nil {
		return link
	}

	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	return c.base.ResolveReference(u).String()
}

// ExpandIRI expands a term to an absolute IRI. Absolute IRIs pass through;
// prefix:suffix forms expand against the registered prefixes; with vocab
// set, bare terms expand into the CSVW namespace.
func (c *Context) ExpandIRI(term string, vocabExpand bool) (string, error) {
	if term == "" {
		return "", fmt.Errorf("%w: empty term", ErrInvalidIRI)
	}

	if IsAbsolute(term) {
		return term, nil
	}

	if prefix, suffix, ok := strings.Cut(term, ":"); ok {
		if ns, found := c.prefixes[prefix]; found {
			return ns + suffix, nil
		}

		// An unregistered scheme-like prefix is kept verbatim.
		return term, nil
	}

	if vocabExpand {
		return vocab.CSVWNamespace + term, nil
	}

	return "", fmt.Errorf("%w: %q is not absolute and has no prefix", ErrInvalidIRI, term)
}

// CompactIRI compacts an absolute IRI to prefix:suffix form using the
// longest matching registered namespace. IRIs in the CSVW namespace compact
// to the bare term. Unmatched IRIs are returned unchanged.
func (c *Context) CompactIRI(iri string) string {
	if strings.HasPrefix(iri, vocab.CSVWNamespace) {
		return strings.TrimPrefix(iri, vocab.CSVWNamespace)
	}

	bestPrefix := ""
	bestLen := 0

	for prefix, ns := range c.prefixes {
		if strings.HasPrefix(iri, ns) && len(ns) > bestLen {
			bestPrefix = prefix
			bestLen = len(ns)
		}
	}

	if bestLen == 0 {
		return iri
	}

	return bestPrefix + ":" + iri[bestLen:]
}

// IsAbsolute reports whether s is an absolute IRI with a known URI scheme
// shape (scheme://... or urn:/mailto:/file: style with a non-prefix scheme).
func IsAbsolute(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	if u.Scheme == "" {
		return false
	}

	// Distinguish real schemes from compact-IRI prefixes: a hierarchical
	// part or a well-known non-hierarchical scheme qualifies.
	if u.Host != "" || strings.HasPrefix(u.Opaque, "/") || u.Path != "" {
		return true
	}

	switch u.Scheme {
	case "urn", "mailto", "tag", "data", "news":
		return true
	}

	return false
}

// ValidLanguage reports whether tag is a well-formed BCP47 language tag.
func ValidLanguage(tag string) bool {
	if tag == "" {
		return false
	}

	if strings.EqualFold(tag, "und") {
		return true
	}

	_, err := language.Parse(tag)

	return err == nil
}
