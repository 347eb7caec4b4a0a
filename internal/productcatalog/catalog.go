// SPDX-License-Identifier: MPL-2.0

// Package productcatalog looks up configuration management repo information
// for installed products.
//
// The product catalog is a configmap in which each key is a product name and
// each value is a YAML document mapping installed versions to product data,
// including the configuration repo clone URL and the commit hash of the
// imported configuration content.
package productcatalog

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	// Namespace is the namespace of the product catalog configmap.
	Namespace = "services"
	// Name is the name of the product catalog configmap.
	Name = "cray-product-catalog"
)

// ConfigMapGetter supplies configmap data; implemented by kube.Client.
type ConfigMapGetter interface {
	ConfigMap(ctx context.Context, namespace, name string) (map[string]string, error)
}

// Configuration describes a product version's configuration repo.
type Configuration struct {
	CloneURL string `yaml:"clone_url"`
	Commit   string `yaml:"commit"`
}

// versionData is the per-version document in the catalog.
type versionData struct {
	Configuration Configuration `yaml:"configuration"`
}

// Catalog reads the product catalog.
type Catalog struct {
	configMaps ConfigMapGetter
}

// NewCatalog creates a Catalog backed by the given configmap source.
func NewCatalog(configMaps ConfigMapGetter) *Catalog {
	return &Catalog{configMaps: configMaps}
}

// ProductConfiguration returns the clone URL and commit for a product
// version. An empty version selects the latest installed version by
// semantic version ordering.
func (c *Catalog) ProductConfiguration(ctx context.Context, product, version string) (Configuration, error) {
	data, err := c.configMaps.ConfigMap(ctx, Namespace, Name)
	if err != nil {
		return Configuration{}, fmt.Errorf("failed to read product catalog: %w", err)
	}

	productYAML, ok := data[product]
	if !ok {
		return Configuration{}, fmt.Errorf("product %q not found in product catalog", product)
	}

	versions := map[string]versionData{}
	if err := yaml.Unmarshal([]byte(productYAML), &versions); err != nil {
		return Configuration{}, fmt.Errorf("invalid product catalog data for product %q: %w", product, err)
	}
	if len(versions) == 0 {
		return Configuration{}, fmt.Errorf("product %q has no versions in the product catalog", product)
	}

	if version == "" {
		version = latestVersion(versions)
	}

	entry, ok := versions[version]
	if !ok {
		return Configuration{}, fmt.Errorf("version %q of product %q not found in product catalog", version, product)
	}

	cfg := entry.Configuration
	if cfg.CloneURL == "" {
		return Configuration{}, fmt.Errorf(
			"version %q of product %q has no configuration repository in the product catalog", version, product)
	}

	return cfg, nil
}

// latestVersion picks the highest version by semver ordering. Catalog
// versions are not "v"-prefixed, so a prefix is added for comparison.
func latestVersion(versions map[string]versionData) string {
	latest := ""
	for version := range versions {
		if latest == "" || semver.Compare("v"+version, "v"+latest) > 0 {
			latest = version
		}
	}
	return latest
}
