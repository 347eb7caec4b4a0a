// SPDX-License-Identifier: MPL-2.0

package cfs

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

// Configuration is a CFS configuration: a named, ordered list of layers.
// Top-level keys other than name and layers (description and so on) are
// preserved across load and save.
type Configuration struct {
	// Name is the configuration name in CFS. Empty for configurations
	// loaded from files or started from scratch.
	Name string

	// Layers are the configuration layers in application order.
	Layers []Layer

	// Extra holds unrecognized top-level payload keys, preserved on save.
	Extra map[string]json.RawMessage

	changed bool
}

// EmptyConfiguration returns a configuration with no layers.
func EmptyConfiguration() *Configuration {
	return &Configuration{}
}

// Changed reports whether the configuration was modified since it was
// loaded. Unchanged configurations do not need to be saved.
func (c *Configuration) Changed() bool {
	return c.changed
}

// duplicateLayerNames returns names that refer to more than one layer.
func (c *Configuration) duplicateLayerNames() []string {
	counts := make(map[string]int)
	for _, layer := range c.Layers {
		if layer.Name != "" {
			counts[layer.Name]++
		}
	}

	var duplicates []string
	for name, count := range counts {
		if count > 1 {
			duplicates = append(duplicates, name)
		}
	}
	return duplicates
}

// EnsureLayer ensures the given layer is present with the requested content
// or absent, depending on state. Matching layers are updated in place;
// otherwise the layer is appended (present) or nothing happens (absent).
func (c *Configuration) EnsureLayer(layer Layer, state LayerState, logger *log.Logger) error {
	if layer.Name != "" {
		for _, duplicate := range c.duplicateLayerNames() {
			if duplicate == layer.Name {
				return fmt.Errorf("duplicate layers named %q found in configuration %q", layer.Name, c.Name)
			}
		}
	}

	if state == LayerStateAbsent {
		return c.removeLayer(layer, logger)
	}
	return c.applyLayer(layer, logger)
}

func (c *Configuration) applyLayer(layer Layer, logger *log.Logger) error {
	matched := false
	for i := range c.Layers {
		if !c.Layers[i].matches(layer) {
			continue
		}
		matched = true
		logger.Info("updating existing layer", "layer", c.Layers[i].EffectiveName(), "configuration", c.Name)
		if c.updateLayerFields(&c.Layers[i], layer, logger) {
			c.changed = true
		}
	}

	if !matched {
		newLayer := layer
		newLayer.Name = layer.EffectiveName()
		logger.Info("appending new layer",
			"layer", newLayer.Name,
			"configuration", c.Name,
			"cloneUrl", newLayer.CloneURL,
			"playbook", newLayer.Playbook,
		)
		c.Layers = append(c.Layers, newLayer)
		c.changed = true
	}

	return nil
}

// updateLayerFields copies the requested content onto an existing layer,
// logging each field that changes. The existing name is kept unless the new
// layer carries an explicit one.
func (c *Configuration) updateLayerFields(existing *Layer, layer Layer, logger *log.Logger) bool {
	changed := false

	update := func(field string, current *string, value string) {
		if value == "" || *current == value {
			return
		}
		logger.Info("layer field updated",
			"layer", existing.EffectiveName(),
			"field", field,
			"from", *current,
			"to", value,
		)
		*current = value
		changed = true
	}

	update("name", &existing.Name, layer.Name)
	update("cloneUrl", &existing.CloneURL, layer.CloneURL)
	update("playbook", &existing.Playbook, layer.Playbook)

	// Commit and branch are a pair: pinning a commit drops any branch and
	// vice versa.
	if layer.Commit != "" && (existing.Commit != layer.Commit || existing.Branch != "") {
		logger.Info("layer field updated",
			"layer", existing.EffectiveName(), "field", "commit",
			"from", existing.Commit, "to", layer.Commit)
		existing.Commit = layer.Commit
		existing.Branch = ""
		changed = true
	} else if layer.Branch != "" && existing.Branch != layer.Branch {
		logger.Info("layer field updated",
			"layer", existing.EffectiveName(), "field", "branch",
			"from", existing.Branch, "to", layer.Branch)
		existing.Branch = layer.Branch
		changed = true
	}

	return changed
}

func (c *Configuration) removeLayer(layer Layer, logger *log.Logger) error {
	kept := c.Layers[:0]
	removed := 0
	for _, existing := range c.Layers {
		if existing.matches(layer) {
			logger.Info("removing layer", "layer", existing.EffectiveName(), "configuration", c.Name)
			removed++
			continue
		}
		kept = append(kept, existing)
	}

	if removed == 0 {
		logger.Info("no matching layer to remove", "configuration", c.Name)
		return nil
	}

	c.Layers = kept
	c.changed = true
	return nil
}
