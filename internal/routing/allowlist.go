package routing

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

// Check reports an error unless entrypoint lists path for method with the
// given class. Registered handlers are checked against it at startup.
func (a Allowlist) Check(entrypoint string, rc RouteClass, method string, path string) error {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return errors.New("allowlist: missing entrypoint")
	}
	for _, r := range ep.Routes {
		if r.Path != path {
			continue
		}
		if RouteClass(r.RouteClass) != rc {
			return fmt.Errorf("allowlist: %s is %s, registered as %s", path, r.RouteClass, rc)
		}
		if !slices.ContainsFunc(r.Methods, func(m string) bool { return strings.EqualFold(m, method) }) {
			return fmt.Errorf("allowlist: %s %s not allowed", method, path)
		}
		return nil
	}
	return fmt.Errorf("allowlist: %s not listed", path)
}
