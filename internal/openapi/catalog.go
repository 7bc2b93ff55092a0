package openapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SchemeName is the name under which the OAuth2 scheme is registered.
const SchemeName = "oauth2"

// Options describe the service in every document's info block.
type Options struct {
	Title          string
	Description    string
	ContactName    string
	ContactEmail   string
	TermsOfService string
	LicenseName    string
	LicenseURL     string
}

// DefaultOptions returns the info used when configuration leaves fields
// empty.
func DefaultOptions() Options {
	return Options{
		Title:          "API",
		Description:    "An application with Swagger, Swashbuckle, and API versioning.",
		ContactName:    "Vietnam Devs",
		ContactEmail:   "vietnam.devs.group@gmail.com",
		TermsOfService: "Shareware",
		LicenseName:    "MIT",
		LicenseURL:     "https://opensource.org/licenses/MIT",
	}
}

// WithDefaults fills empty fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&o.Title, d.Title)
	fill(&o.Description, d.Description)
	fill(&o.ContactName, d.ContactName)
	fill(&o.ContactEmail, d.ContactEmail)
	fill(&o.TermsOfService, d.TermsOfService)
	fill(&o.LicenseName, d.LicenseName)
	fill(&o.LicenseURL, d.LicenseURL)
	return o
}

// Group is one documented API version.
type Group struct {
	Name       string
	Version    string
	Deprecated bool
}

// Catalog holds one Document per group. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	opts    Options
	order   []string
	docs    map[string]*Document
	scheme  *SecurityScheme
	secured bool
}

// NewCatalog creates an empty document for each group.
func NewCatalog(opts Options, groups ...Group) *Catalog {
	opts = opts.WithDefaults()
	c := &Catalog{
		opts: opts,
		docs: make(map[string]*Document, len(groups)),
	}
	for _, g := range groups {
		if _, dup := c.docs[g.Name]; dup {
			continue
		}
		c.order = append(c.order, g.Name)
		c.docs[g.Name] = &Document{
			OpenAPI: Version,
			Info:    infoFor(opts, g),
			Paths:   make(map[string]PathItem),
		}
	}
	return c
}

func infoFor(opts Options, g Group) Info {
	info := Info{
		Title:          fmt.Sprintf("%s %s", opts.Title, g.Version),
		Description:    opts.Description,
		TermsOfService: opts.TermsOfService,
		Contact:        &Contact{Name: opts.ContactName, Email: opts.ContactEmail},
		License:        &License{Name: opts.LicenseName, URL: opts.LicenseURL},
		Version:        g.Version,
	}
	if g.Deprecated {
		info.Description += deprecatedNote
	}
	return info
}

// Groups returns the group names in creation order.
func (c *Catalog) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Register adds op under method and path in group. When the group already
// documents the same method and path the first operation is kept and
// Register returns false. Unknown groups also return false.
func (c *Catalog) Register(group, method, path string, op Operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[group]
	if !ok {
		return false
	}

	method = strings.ToLower(method)
	item := doc.Paths[path]
	if item == nil {
		item = make(PathItem)
		doc.Paths[path] = item
	}
	if _, exists := item[method]; exists {
		return false
	}
	if op.Responses == nil {
		op.Responses = map[string]Response{"200": {Description: "Success"}}
	}
	item[method] = op
	return true
}

// UseOAuth2 adds an implicit-flow OAuth2 scheme against authority to every
// document and requires it on every operation.
func (c *Catalog) UseOAuth2(authority string, scopes map[string]string) {
	authority = strings.TrimRight(authority, "/")
	if scopes == nil {
		scopes = map[string]string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.scheme = &SecurityScheme{
		Type: "oauth2",
		Flows: &OAuthFlows{Implicit: &OAuthFlow{
			AuthorizationURL: authority + "/connect/authorize",
			TokenURL:         authority + "/connect/token",
			Scopes:           scopes,
		}},
	}
	c.secured = true
}

// Secured reports whether an OAuth2 scheme was added.
func (c *Catalog) Secured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secured
}

// Scheme returns a copy of the OAuth2 scheme added by UseOAuth2.
func (c *Catalog) Scheme() (SecurityScheme, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.scheme == nil {
		return SecurityScheme{}, false
	}
	return *c.scheme, true
}

// Document returns a snapshot of group's document with the security scheme
// applied.
func (c *Catalog) Document(group string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[group]
	if !ok {
		return Document{}, false
	}

	out := Document{
		OpenAPI: doc.OpenAPI,
		Info:    doc.Info,
		Paths:   make(map[string]PathItem, len(doc.Paths)),
	}
	for path, item := range doc.Paths {
		copied := make(PathItem, len(item))
		for method, op := range item {
			if c.secured {
				op.Security = []SecurityRequirement{{SchemeName: scopeNames(c.scheme)}}
				if _, has := op.Responses["401"]; !has {
					op.Responses = withResponse(op.Responses, "401", "Unauthorized")
				}
				if _, has := op.Responses["403"]; !has {
					op.Responses = withResponse(op.Responses, "403", "Forbidden")
				}
			}
			copied[method] = op
		}
		out.Paths[path] = copied
	}
	if c.scheme != nil {
		out.Components = &Components{SecuritySchemes: map[string]SecurityScheme{SchemeName: *c.scheme}}
	}
	return out, true
}

func withResponse(in map[string]Response, code, description string) map[string]Response {
	out := make(map[string]Response, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	out[code] = Response{Description: description}
	return out
}

func scopeNames(s *SecurityScheme) []string {
	names := make([]string, 0)
	if s == nil || s.Flows == nil || s.Flows.Implicit == nil {
		return names
	}
	for name := range s.Flows.Implicit.Scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
