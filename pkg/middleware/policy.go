package middleware

import (
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/steeplehq/steeple/pkg/roles"
	"gopkg.in/yaml.v3"
)

// RouteClass is the classification of an inbound request path.
type RouteClass int

const (
	// ClassUnclassified routes pass through the enforcer unchanged.
	ClassUnclassified RouteClass = iota
	// ClassPublic routes (sign-in, sign-up) redirect already
	// authenticated users to the landing page.
	ClassPublic
	// ClassProtected routes require any authenticated session.
	ClassProtected
	// ClassChurchScoped routes encode a target church in the path and
	// require church access; they may additionally be role-scoped.
	ClassChurchScoped
)

// Classification is the result of classifying one path.
type Classification struct {
	Class    RouteClass
	ChurchID string       // set for ClassChurchScoped
	Allowed  []roles.Role // non-empty when the route is role-scoped
}

// RoleScoped reports whether the route additionally restricts by role.
func (c Classification) RoleScoped() bool {
	return len(c.Allowed) > 0
}

// RoutePolicy declares how paths are classified. It is data loaded at
// startup, optionally from a YAML file, so new routes don't require
// code changes.
type RoutePolicy struct {
	PublicPrefixes    []string                `yaml:"public_prefixes"`
	ProtectedPrefixes []string                `yaml:"protected_prefixes"`
	ChurchPrefix      string                  `yaml:"church_prefix"`
	RoleRoutes        map[string][]roles.Role `yaml:"role_routes"`

	SignInPath       string `yaml:"sign_in_path"`
	LandingPath      string `yaml:"landing_path"`
	UnauthorizedPath string `yaml:"unauthorized_path"`
}

// DefaultRoutePolicy returns the shipped route policy.
func DefaultRoutePolicy() *RoutePolicy {
	return &RoutePolicy{
		PublicPrefixes:    []string{"/sign-in", "/sign-up", "/forgot-password"},
		ProtectedPrefixes: []string{"/protected", "/church"},
		ChurchPrefix:      "/church/",
		RoleRoutes: map[string][]roles.Role{
			"/admin": {roles.RoleSuperAdmin, roles.RoleChurchAdmin},
			"/staff": {roles.RoleSuperAdmin, roles.RoleChurchAdmin, roles.RoleStaff},
		},
		SignInPath:       "/sign-in",
		LandingPath:      "/protected",
		UnauthorizedPath: "/unauthorized",
	}
}

// LoadRoutePolicy reads a policy from a YAML file, filling unset
// fields from the default policy.
func LoadRoutePolicy(path string) (*RoutePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route policy: %w", err)
	}

	policy := DefaultRoutePolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse route policy: %w", err)
	}

	for route, allowed := range policy.RoleRoutes {
		for _, r := range allowed {
			if !roles.IsRecognized(string(r)) {
				return nil, fmt.Errorf("route policy %s names unknown role %q", route, r)
			}
		}
	}

	return policy, nil
}

// Classifier classifies request paths against a RoutePolicy.
// Classification is a pure function of the path, so results are held
// in a small LRU to skip re-parsing hot paths.
type Classifier struct {
	policy *RoutePolicy
	cache  *lru.Cache[string, Classification]
}

// NewClassifier creates a classifier for the given policy.
func NewClassifier(policy *RoutePolicy) (*Classifier, error) {
	if policy == nil {
		policy = DefaultRoutePolicy()
	}
	cache, err := lru.New[string, Classification](1024)
	if err != nil {
		return nil, err
	}
	return &Classifier{policy: policy, cache: cache}, nil
}

// Policy returns the classifier's policy.
func (c *Classifier) Policy() *RoutePolicy {
	return c.policy
}

// Classify determines the route class for a request path.
func (c *Classifier) Classify(path string) Classification {
	if cached, ok := c.cache.Get(path); ok {
		return cached
	}
	result := c.classify(path)
	c.cache.Add(path, result)
	return result
}

func (c *Classifier) classify(path string) Classification {
	// Church-scoped takes precedence: /church/{id}/... is both
	// protected and church-bound.
	if strings.HasPrefix(path, c.policy.ChurchPrefix) {
		rest := strings.TrimPrefix(path, c.policy.ChurchPrefix)
		churchID, remainder, _ := strings.Cut(rest, "/")
		if churchID != "" {
			result := Classification{Class: ClassChurchScoped, ChurchID: churchID}
			if remainder != "" {
				remainder = "/" + remainder
				for route, allowed := range c.policy.RoleRoutes {
					if strings.HasPrefix(remainder, route) {
						result.Allowed = allowed
						break
					}
				}
			}
			return result
		}
	}

	for _, prefix := range c.policy.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return Classification{Class: ClassPublic}
		}
	}

	for _, prefix := range c.policy.ProtectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return Classification{Class: ClassProtected}
		}
	}

	return Classification{Class: ClassUnclassified}
}
