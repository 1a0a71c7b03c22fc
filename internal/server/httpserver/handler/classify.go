package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Branch is the outcome of classifying a request.
type Branch int

const (
	// BranchPassThrough leaves the request to the pass-through handler.
	BranchPassThrough Branch = iota
	// BranchDiagnostic answers GET <api> with the readiness flag.
	BranchDiagnostic
	// BranchForbidden refuses authentication and write endpoints.
	BranchForbidden
	// BranchQuery runs the SQL carried by POST <api>.
	BranchQuery
)

// String returns the branch name used in logs and metrics.
func (b Branch) String() string {
	switch b {
	case BranchDiagnostic:
		return "diagnostic"
	case BranchForbidden:
		return "forbidden"
	case BranchQuery:
		return "query"
	default:
		return "pass_through"
	}
}

// Request is the part of an HTTP request classification looks at.
type Request struct {
	Method string
	Origin string
	Path   string
}

// RequestFrom extracts the classification input from r.
//
// The origin comes from the absolute request URL when the client used
// proxy form, otherwise from the Host header and the connection scheme.
func RequestFrom(r *http.Request) Request {
	var origin string
	if r.URL.IsAbs() {
		origin = r.URL.Scheme + "://" + r.URL.Host
	} else {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		origin = scheme + "://" + r.Host
	}
	return Request{
		Method: r.Method,
		Origin: origin,
		Path:   r.URL.Path,
	}
}

// Routes are the intercepted paths.
type Routes struct {
	// Origin is the only origin intercepted, as scheme://host[:port].
	// Empty intercepts any origin.
	Origin string

	API    string
	Login  string
	Update string
}

// NewRoutes resolves the api, login and update paths against basePath,
// the way relative URLs resolve against a directory. A basePath without
// a trailing slash is treated as a directory.
func NewRoutes(basePath, origin string) (Routes, error) {
	if basePath == "" {
		basePath = "/"
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	base, err := url.Parse(basePath)
	if err != nil {
		return Routes{}, fmt.Errorf("parse base path %q: %w", basePath, err)
	}
	if base.IsAbs() || base.Host != "" {
		return Routes{}, fmt.Errorf("base path %q must be a path, not a URL", basePath)
	}
	if !strings.HasPrefix(base.Path, "/") {
		return Routes{}, fmt.Errorf("base path %q must start with /", basePath)
	}

	if origin != "" {
		o, err := url.Parse(origin)
		if err != nil || o.Scheme == "" || o.Host == "" {
			return Routes{}, fmt.Errorf("origin %q must be scheme://host", origin)
		}
		origin = strings.ToLower(o.Scheme + "://" + o.Host)
	}

	resolve := func(p string) string {
		return base.ResolveReference(&url.URL{Path: p}).Path
	}
	return Routes{
		Origin: origin,
		API:    resolve("api"),
		Login:  resolve("login"),
		Update: resolve("update"),
	}, nil
}

// Classify picks the branch for req. The first matching rule wins:
//
//  1. a foreign origin passes through
//  2. GET on the api path is diagnostic
//  3. POST on the login path, or PUT or POST on the update path, is forbidden
//  4. POST on the api path is a query
//  5. anything else passes through
//
// The api path also matches with a trailing slash; login and update do not.
func Classify(req Request, routes Routes) Branch {
	if routes.Origin != "" && !strings.EqualFold(req.Origin, routes.Origin) {
		return BranchPassThrough
	}

	isAPI := req.Path == routes.API || req.Path == routes.API+"/"

	switch {
	case req.Method == http.MethodGet && isAPI:
		return BranchDiagnostic
	case req.Method == http.MethodPost && req.Path == routes.Login,
		(req.Method == http.MethodPut || req.Method == http.MethodPost) && req.Path == routes.Update:
		return BranchForbidden
	case req.Method == http.MethodPost && isAPI:
		return BranchQuery
	default:
		return BranchPassThrough
	}
}
