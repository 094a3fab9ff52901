// Package mocks provides an in-process stand-in for the platform
// management API and its login server, for integration tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Quota describes a quota definition served by the mock platform.
type Quota struct {
	GUID          string
	Name          string
	MemoryLimit   int64
	TotalRoutes   int64
	TotalServices int64
	CreatedAt     string
	UpdatedAt     string
}

// Service describes one provisioned service in an org's space.
type Service struct {
	GUID     string
	Label    string
	Provider string
	PlanName string
}

// Org describes one organization and what the mock serves for it.
// FailQuota makes its quota definition endpoint return a 500.
type Org struct {
	GUID      string
	Name      string
	Quota     *Quota
	Services  []Service
	FailQuota bool
}

// Platform serves a configurable org topology over two httptest
// servers, one for the API and one for the login endpoint. It records
// token exchanges and request paths for assertions.
type Platform struct {
	mu             sync.Mutex
	orgs           []Org
	pageSize       int
	tokenExchanges int
	requests       []string

	api *httptest.Server
	uaa *httptest.Server
}

// NewPlatform starts a mock platform serving the given orgs. A
// pageSize of 0 serves the whole listing on one page.
func NewPlatform(orgs []Org, pageSize int) *Platform {
	p := &Platform{orgs: orgs, pageSize: pageSize}

	p.uaa = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.tokenExchanges++
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "mock-token", "expires_in": 600}`)
	}))

	p.api = httptest.NewServer(http.HandlerFunc(p.handleAPI))
	return p
}

// APIURL returns the base URL of the mock management API.
func (p *Platform) APIURL() string { return p.api.URL }

// UAAURL returns the base URL of the mock login server.
func (p *Platform) UAAURL() string { return p.uaa.URL }

// TokenExchanges returns how many token exchanges were performed.
func (p *Platform) TokenExchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenExchanges
}

// Requests returns the API paths requested so far.
func (p *Platform) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.requests))
	copy(out, p.requests)
	return out
}

// Close shuts both servers down.
func (p *Platform) Close() {
	p.api.Close()
	p.uaa.Close()
}

func (p *Platform) handleAPI(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.URL.Path)
	p.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/v2/organizations":
		p.serveOrgPage(w, r)
	case strings.HasPrefix(path, "/v2/quota_definitions/"):
		p.serveQuota(w, r, strings.TrimPrefix(path, "/v2/quota_definitions/"))
	case strings.HasPrefix(path, "/v2/organizations/") && strings.HasSuffix(path, "/spaces"):
		guid := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/organizations/"), "/spaces")
		p.serveSpaces(w, guid)
	case strings.HasPrefix(path, "/v2/spaces/") && strings.HasSuffix(path, "/summary"):
		guid := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/spaces/"), "/summary")
		p.serveSummary(w, guid)
	default:
		http.NotFound(w, r)
	}
}

func (p *Platform) serveOrgPage(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		page, _ = strconv.Atoi(v)
	}

	size := p.pageSize
	if size <= 0 {
		size = len(p.orgs)
	}
	start := (page - 1) * size
	end := start + size
	if start > len(p.orgs) {
		start = len(p.orgs)
	}
	if end > len(p.orgs) {
		end = len(p.orgs)
	}

	resources := make([]map[string]interface{}, 0, end-start)
	for _, org := range p.orgs[start:end] {
		entity := map[string]interface{}{
			"name":       org.Name,
			"spaces_url": fmt.Sprintf("/v2/organizations/%s/spaces", org.GUID),
		}
		if org.Quota != nil || org.FailQuota {
			quotaGUID := "missing"
			if org.Quota != nil {
				quotaGUID = org.Quota.GUID
			}
			if org.FailQuota {
				quotaGUID = "broken-" + org.GUID
			}
			entity["quota_definition_url"] = "/v2/quota_definitions/" + quotaGUID
		}
		resources = append(resources, map[string]interface{}{
			"metadata": map[string]interface{}{
				"guid": org.GUID,
				"url":  "/v2/organizations/" + org.GUID,
			},
			"entity": entity,
		})
	}

	var nextURL interface{}
	if end < len(p.orgs) {
		nextURL = fmt.Sprintf("/v2/organizations?page=%d", page+1)
	}

	writeJSON(w, map[string]interface{}{
		"total_results": len(p.orgs),
		"next_url":      nextURL,
		"resources":     resources,
	})
}

func (p *Platform) serveQuota(w http.ResponseWriter, r *http.Request, guid string) {
	if strings.HasPrefix(guid, "broken-") {
		http.Error(w, "upstream failure", http.StatusInternalServerError)
		return
	}
	for _, org := range p.orgs {
		if org.Quota == nil || org.Quota.GUID != guid {
			continue
		}
		writeJSON(w, map[string]interface{}{
			"metadata": map[string]interface{}{
				"guid":       org.Quota.GUID,
				"url":        "/v2/quota_definitions/" + org.Quota.GUID,
				"created_at": org.Quota.CreatedAt,
				"updated_at": org.Quota.UpdatedAt,
			},
			"entity": map[string]interface{}{
				"name":           org.Quota.Name,
				"memory_limit":   org.Quota.MemoryLimit,
				"total_routes":   org.Quota.TotalRoutes,
				"total_services": org.Quota.TotalServices,
			},
		})
		return
	}
	http.NotFound(w, r)
}

func (p *Platform) serveSpaces(w http.ResponseWriter, orgGUID string) {
	spaceGUID := orgGUID + "-space"
	writeJSON(w, map[string]interface{}{
		"total_results": 1,
		"next_url":      nil,
		"resources": []map[string]interface{}{
			{"metadata": map[string]interface{}{
				"guid": spaceGUID,
				"url":  "/v2/spaces/" + spaceGUID,
			}},
		},
	})
}

func (p *Platform) serveSummary(w http.ResponseWriter, spaceGUID string) {
	orgGUID := strings.TrimSuffix(spaceGUID, "-space")
	for _, org := range p.orgs {
		if org.GUID != orgGUID {
			continue
		}
		services := make([]map[string]interface{}, 0, len(org.Services))
		for _, svc := range org.Services {
			services = append(services, map[string]interface{}{
				"service_plan": map[string]interface{}{
					"name": svc.PlanName,
					"service": map[string]interface{}{
						"guid":     svc.GUID,
						"label":    svc.Label,
						"provider": svc.Provider,
					},
				},
			})
		}
		writeJSON(w, map[string]interface{}{"services": services})
		return
	}
	writeJSON(w, map[string]interface{}{"services": []interface{}{}})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
