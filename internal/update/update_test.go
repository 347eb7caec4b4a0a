// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"cfs-config-util/internal/cfs"
	"cfs-config-util/internal/productcatalog"
	"cfs-config-util/internal/wait"
)

const (
	testCloneURL = "https://vcs.local/vcs/cray/sat-config-management.git"
	testCommit   = "6e42d6e57855cfe022c5481efa7c971114ee1688"
)

type savedConfig struct {
	cfg          *cfs.Configuration
	name         string
	overwrite    bool
	backupSuffix string
}

type fakeCFS struct {
	configs        map[string]*cfs.Configuration
	fileConfigs    map[string]*cfs.Configuration
	saved          []savedConfig
	wroteFiles     map[string]*cfs.Configuration
	wroteOverwrite map[string]bool
	updates        map[string]cfs.ComponentUpdate
	usingConfig    map[string][]string
	updateErrors   map[string]error
}

func newFakeCFS() *fakeCFS {
	return &fakeCFS{
		configs:        map[string]*cfs.Configuration{},
		fileConfigs:    map[string]*cfs.Configuration{},
		wroteFiles:     map[string]*cfs.Configuration{},
		wroteOverwrite: map[string]bool{},
		updates:        map[string]cfs.ComponentUpdate{},
		usingConfig:    map[string][]string{},
	}
}

func (f *fakeCFS) GetConfiguration(ctx context.Context, name string) (*cfs.Configuration, error) {
	cfg, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("configuration %q not found", name)
	}
	return cfg, nil
}

func (f *fakeCFS) SaveConfiguration(ctx context.Context, cfg *cfs.Configuration, name string, overwrite bool, backupSuffix string) (*cfs.Configuration, error) {
	f.saved = append(f.saved, savedConfig{cfg: cfg, name: name, overwrite: overwrite, backupSuffix: backupSuffix})
	return &cfs.Configuration{Name: name, Layers: cfg.Layers}, nil
}

func (f *fakeCFS) ReadConfigurationFile(path string) (*cfs.Configuration, error) {
	cfg, ok := f.fileConfigs[path]
	if !ok {
		return nil, fmt.Errorf("file %q not found", path)
	}
	return cfg, nil
}

func (f *fakeCFS) WriteConfigurationFile(cfg *cfs.Configuration, path string, overwrite bool) error {
	f.wroteFiles[path] = cfg
	f.wroteOverwrite[path] = overwrite
	return nil
}

func (f *fakeCFS) UpdateComponent(ctx context.Context, id string, update cfs.ComponentUpdate) error {
	if err := f.updateErrors[id]; err != nil {
		return err
	}
	f.updates[id] = update
	return nil
}

func (f *fakeCFS) ComponentIDsUsingConfig(ctx context.Context, configName string) ([]string, error) {
	return f.usingConfig[configName], nil
}

func (f *fakeCFS) ConfigurationsForComponents(ctx context.Context, hsm cfs.ComponentQuerier, query map[string]string) ([]*cfs.Configuration, error) {
	var configs []*cfs.Configuration
	for _, cfg := range f.configs {
		configs = append(configs, cfg)
	}
	return configs, nil
}

type fakeHSM struct {
	nodeIDs []string
	err     error
}

func (f *fakeHSM) ComponentXNames(ctx context.Context, params map[string]string) ([]string, error) {
	return f.nodeIDs, f.err
}

func (f *fakeHSM) NodeIDs(ctx context.Context, explicit []string, query map[string]string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := append([]string{}, explicit...)
	if len(query) > 0 {
		ids = append(ids, f.nodeIDs...)
	}
	return ids, nil
}

type fakeCatalog struct {
	cfg productcatalog.Configuration
	err error
}

func (f *fakeCatalog) ProductConfiguration(ctx context.Context, product, version string) (productcatalog.Configuration, error) {
	return f.cfg, f.err
}

type fakeWaiter struct {
	result wait.Result
	err    error
	gotIDs []string
}

func (f *fakeWaiter) ForComponents(ctx context.Context, ids []string) (wait.Result, error) {
	f.gotIDs = ids
	return f.result, f.err
}

type testFixture struct {
	cfs     *fakeCFS
	hsm     *fakeHSM
	catalog *fakeCatalog
	waiter  *fakeWaiter
	updater *Updater
}

func newFixture() *testFixture {
	f := &testFixture{
		cfs:     newFakeCFS(),
		hsm:     &fakeHSM{},
		catalog: &fakeCatalog{},
		waiter:  &fakeWaiter{},
	}
	resolver := func(cloneURL, branch string) (string, error) {
		return "", errors.New("no resolver configured")
	}
	f.updater = NewUpdater(f.cfs, f.hsm, f.catalog, resolver, f.waiter, log.New(io.Discard))
	f.updater.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	}
	return f
}

func TestConfigsNewConfigurationFromCloneURL(t *testing.T) {
	f := newFixture()

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:  testCloneURL,
		Commit:    testCommit,
		Playbooks: []string{"sat-ncn.yml"},
		State:     cfs.LayerStatePresent,
		SaveToCFS: "new-config",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if len(f.cfs.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(f.cfs.saved))
	}
	saved := f.cfs.saved[0]
	if saved.name != "new-config" {
		t.Errorf("saved under name %q", saved.name)
	}
	if len(saved.cfg.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(saved.cfg.Layers))
	}
	layer := saved.cfg.Layers[0]
	if layer.CloneURL != testCloneURL || layer.Commit != testCommit || layer.Playbook != "sat-ncn.yml" {
		t.Errorf("unexpected layer %+v", layer)
	}
}

func TestConfigsMultiplePlaybooks(t *testing.T) {
	f := newFixture()

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:  testCloneURL,
		Commit:    testCommit,
		Playbooks: []string{"sat-ncn.yml", "site.yml"},
		State:     cfs.LayerStatePresent,
		SaveToCFS: "new-config",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	layers := f.cfs.saved[0].cfg.Layers
	if len(layers) != 2 {
		t.Fatalf("expected one layer per playbook, got %d", len(layers))
	}
	if layers[0].Playbook != "sat-ncn.yml" || layers[1].Playbook != "site.yml" {
		t.Errorf("unexpected playbooks %q, %q", layers[0].Playbook, layers[1].Playbook)
	}
}

func TestConfigsLayerFromProductCatalog(t *testing.T) {
	f := newFixture()
	f.catalog.cfg = productcatalog.Configuration{CloneURL: testCloneURL, Commit: testCommit}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		Product:   "sat",
		State:     cfs.LayerStatePresent,
		SaveToCFS: "new-config",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	layer := f.cfs.saved[0].cfg.Layers[0]
	if layer.CloneURL != testCloneURL {
		t.Errorf("layer clone URL = %q, want product catalog URL", layer.CloneURL)
	}
	if layer.Commit != testCommit {
		t.Errorf("layer commit = %q, want product catalog commit", layer.Commit)
	}
}

func TestConfigsProductBranchOverridesCatalogCommit(t *testing.T) {
	f := newFixture()
	f.catalog.cfg = productcatalog.Configuration{CloneURL: testCloneURL, Commit: testCommit}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		Product:   "sat",
		Branch:    "integration",
		State:     cfs.LayerStatePresent,
		SaveToCFS: "new-config",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	layer := f.cfs.saved[0].cfg.Layers[0]
	if layer.Commit != "" {
		t.Errorf("catalog commit should not be used when a branch is given, got %q", layer.Commit)
	}
	if layer.Branch != "integration" {
		t.Errorf("layer branch = %q", layer.Branch)
	}
}

func TestConfigsResolvesBranchToCommit(t *testing.T) {
	f := newFixture()
	var resolvedRepo, resolvedBranch string
	f.updater.resolveBranch = func(cloneURL, branch string) (string, error) {
		resolvedRepo, resolvedBranch = cloneURL, branch
		return testCommit, nil
	}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:        testCloneURL,
		Branch:          "integration",
		ResolveBranches: true,
		State:           cfs.LayerStatePresent,
		SaveToCFS:       "new-config",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if resolvedRepo != testCloneURL || resolvedBranch != "integration" {
		t.Errorf("resolver called with (%q, %q)", resolvedRepo, resolvedBranch)
	}
	layer := f.cfs.saved[0].cfg.Layers[0]
	if layer.Commit != testCommit || layer.Branch != "" {
		t.Errorf("branch should be pinned to a commit, got %+v", layer)
	}
}

func TestConfigsBranchResolutionFailure(t *testing.T) {
	f := newFixture()

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:        testCloneURL,
		Branch:          "missing",
		ResolveBranches: true,
		State:           cfs.LayerStatePresent,
		SaveToCFS:       "new-config",
	})
	if err == nil {
		t.Error("expected error when branch resolution fails")
	}
}

func TestConfigsSaveInPlaceUnchangedSkipsSave(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{
		Name: "ncn-personalization",
		Layers: []cfs.Layer{{
			CloneURL: testCloneURL,
			Commit:   testCommit,
			Playbook: "sat-ncn.yml",
		}},
	}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:    testCloneURL,
		Commit:      testCommit,
		Playbooks:   []string{"sat-ncn.yml"},
		State:       cfs.LayerStatePresent,
		BaseConfig:  "ncn-personalization",
		SaveInPlace: true,
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if len(f.cfs.saved) != 0 {
		t.Errorf("unchanged configuration should not be saved, got %d saves", len(f.cfs.saved))
	}
}

func TestConfigsSaveInPlaceWithBackup(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:      testCloneURL,
		Commit:        testCommit,
		Playbooks:     []string{"sat-ncn.yml"},
		State:         cfs.LayerStatePresent,
		BaseConfig:    "ncn-personalization",
		SaveInPlace:   true,
		CreateBackups: true,
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if len(f.cfs.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(f.cfs.saved))
	}
	saved := f.cfs.saved[0]
	if saved.name != "ncn-personalization" || !saved.overwrite {
		t.Errorf("expected in-place overwrite, got %+v", saved)
	}
	if saved.backupSuffix != "-backup-20240601T123000" {
		t.Errorf("backup suffix = %q", saved.backupSuffix)
	}
}

func TestConfigsSaveSuffix(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:   testCloneURL,
		Commit:     testCommit,
		Playbooks:  []string{"sat-ncn.yml"},
		State:      cfs.LayerStatePresent,
		BaseConfig: "ncn-personalization",
		SaveSuffix: "-new",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if got := f.cfs.saved[0].name; got != "ncn-personalization-new" {
		t.Errorf("saved under %q, want suffixed name", got)
	}
}

func TestConfigsSaveToFile(t *testing.T) {
	f := newFixture()

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:   testCloneURL,
		Commit:     testCommit,
		Playbooks:  []string{"sat-ncn.yml"},
		State:      cfs.LayerStatePresent,
		SaveToFile: "/data/output/config.json",
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if _, ok := f.cfs.wroteFiles["/data/output/config.json"]; !ok {
		t.Error("configuration should be written to the output file")
	}
	if len(f.cfs.saved) != 0 {
		t.Error("nothing should be saved to CFS when saving to a file")
	}
}

func TestConfigsSaveToCFSOverwriteRequiresBase(t *testing.T) {
	opts := ConfigsOptions{
		CloneURL:  testCloneURL,
		Commit:    testCommit,
		Playbooks: []string{"sat-ncn.yml"},
		State:     cfs.LayerStatePresent,
		SaveToCFS: "new-config",
	}

	t.Run("no base", func(t *testing.T) {
		f := newFixture()
		if err := f.updater.Configs(context.Background(), opts); err != nil {
			t.Fatalf("Configs() returned error: %v", err)
		}
		if f.cfs.saved[0].overwrite {
			t.Error("an existing configuration must not be overwritten when no base is given")
		}
	})

	t.Run("base config", func(t *testing.T) {
		f := newFixture()
		f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}

		withBase := opts
		withBase.BaseConfig = "ncn-personalization"
		if err := f.updater.Configs(context.Background(), withBase); err != nil {
			t.Fatalf("Configs() returned error: %v", err)
		}
		if !f.cfs.saved[0].overwrite {
			t.Error("saving a modified base configuration should overwrite the destination")
		}
	})
}

func TestConfigsSaveToFileOverwriteRequiresBase(t *testing.T) {
	opts := ConfigsOptions{
		CloneURL:   testCloneURL,
		Commit:     testCommit,
		Playbooks:  []string{"sat-ncn.yml"},
		State:      cfs.LayerStatePresent,
		SaveToFile: "/data/output/config.json",
	}

	t.Run("no base", func(t *testing.T) {
		f := newFixture()
		if err := f.updater.Configs(context.Background(), opts); err != nil {
			t.Fatalf("Configs() returned error: %v", err)
		}
		if f.cfs.wroteOverwrite["/data/output/config.json"] {
			t.Error("an existing file must not be overwritten when no base is given")
		}
	})

	t.Run("base file", func(t *testing.T) {
		f := newFixture()
		f.cfs.fileConfigs["/data/input/base.json"] = &cfs.Configuration{Name: "base"}

		withBase := opts
		withBase.BaseFile = "/data/input/base.json"
		if err := f.updater.Configs(context.Background(), withBase); err != nil {
			t.Fatalf("Configs() returned error: %v", err)
		}
		if !f.cfs.wroteOverwrite["/data/output/config.json"] {
			t.Error("saving a modified base file should overwrite the destination")
		}
	})
}

func TestConfigsUnchangedSkipsEverySaveDestination(t *testing.T) {
	upToDate := func() *cfs.Configuration {
		return &cfs.Configuration{
			Name: "ncn-personalization",
			Layers: []cfs.Layer{{
				CloneURL: testCloneURL,
				Commit:   testCommit,
				Playbook: "sat-ncn.yml",
			}},
		}
	}

	tests := []struct {
		name string
		opts ConfigsOptions
	}{
		{"save to cfs", ConfigsOptions{SaveToCFS: "other-config"}},
		{"save to file", ConfigsOptions{SaveToFile: "/data/output/config.json"}},
		{"save suffix", ConfigsOptions{SaveSuffix: "-new"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.cfs.configs["ncn-personalization"] = upToDate()

			opts := tt.opts
			opts.CloneURL = testCloneURL
			opts.Commit = testCommit
			opts.Playbooks = []string{"sat-ncn.yml"}
			opts.State = cfs.LayerStatePresent
			opts.BaseConfig = "ncn-personalization"

			if err := f.updater.Configs(context.Background(), opts); err != nil {
				t.Fatalf("Configs() returned error: %v", err)
			}
			if len(f.cfs.saved) != 0 {
				t.Errorf("unchanged configuration should not be saved, got %d saves", len(f.cfs.saved))
			}
			if len(f.cfs.wroteFiles) != 0 {
				t.Errorf("unchanged configuration should not be written, got %d files", len(f.cfs.wroteFiles))
			}
		})
	}
}

func TestConfigsWaitsOnComponentsUsingModifiedConfig(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}
	f.cfs.usingConfig["ncn-personalization"] = []string{"x3000c0s1b0n0", "x3000c0s3b0n0"}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:    testCloneURL,
		Commit:      testCommit,
		State:       cfs.LayerStatePresent,
		BaseConfig:  "ncn-personalization",
		SaveInPlace: true,
		Wait:        true,
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	if !reflect.DeepEqual(f.waiter.gotIDs, []string{"x3000c0s1b0n0", "x3000c0s3b0n0"}) {
		t.Errorf("should wait on the components using the modified configuration, waited on %v", f.waiter.gotIDs)
	}
}

func TestConfigsAssignsToComponents(t *testing.T) {
	f := newFixture()

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:     testCloneURL,
		Commit:       testCommit,
		Playbooks:    []string{"sat-ncn.yml"},
		State:        cfs.LayerStatePresent,
		SaveToCFS:    "new-config",
		AssignXNames: []string{"x3000c0s1b0n0", "x3000c0s3b0n0"},
		ClearState:   true,
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	for _, id := range []string{"x3000c0s1b0n0", "x3000c0s3b0n0"} {
		update, ok := f.cfs.updates[id]
		if !ok {
			t.Errorf("component %q was not updated", id)
			continue
		}
		if update.DesiredConfig == nil || *update.DesiredConfig != "new-config" {
			t.Errorf("component %q desired config = %v", id, update.DesiredConfig)
		}
		if !update.ClearState {
			t.Errorf("component %q state should be cleared", id)
		}
	}
}

func TestConfigsAssignFailureCollected(t *testing.T) {
	f := newFixture()
	f.cfs.updateErrors = map[string]error{"x3000c0s3b0n0": errors.New("conflict")}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:     testCloneURL,
		Commit:       testCommit,
		State:        cfs.LayerStatePresent,
		SaveToCFS:    "new-config",
		AssignXNames: []string{"x3000c0s1b0n0", "x3000c0s3b0n0"},
	})
	if err == nil {
		t.Fatal("expected error when a component update fails")
	}
	if !strings.Contains(err.Error(), "x3000c0s3b0n0") {
		t.Errorf("error should name the failed component: %v", err)
	}
	if _, ok := f.cfs.updates["x3000c0s1b0n0"]; !ok {
		t.Error("remaining components should still be updated")
	}
}

func TestConfigsAppliesOptionsToAffectedComponents(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}
	f.cfs.usingConfig["ncn-personalization"] = []string{"x3000c0s1b0n0"}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:    testCloneURL,
		Commit:      testCommit,
		State:       cfs.LayerStatePresent,
		BaseConfig:  "ncn-personalization",
		SaveInPlace: true,
		ClearState:  true,
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	update, ok := f.cfs.updates["x3000c0s1b0n0"]
	if !ok {
		t.Fatal("component using the saved configuration should be updated")
	}
	if update.DesiredConfig != nil {
		t.Error("desired config should not change without assignment options")
	}
	if !update.ClearState {
		t.Error("state should be cleared")
	}
}

func TestConfigsAppliesOptionsToAffectedComponentsWithAssignment(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{Name: "ncn-personalization"}
	f.cfs.usingConfig["ncn-personalization"] = []string{"x3000c0s5b0n0"}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:     testCloneURL,
		Commit:       testCommit,
		State:        cfs.LayerStatePresent,
		BaseConfig:   "ncn-personalization",
		SaveInPlace:  true,
		ClearState:   true,
		AssignXNames: []string{"x3000c0s1b0n0"},
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	affected, ok := f.cfs.updates["x3000c0s5b0n0"]
	if !ok {
		t.Fatal("component already using the configuration should be updated even when assigning")
	}
	if affected.DesiredConfig != nil {
		t.Error("the affected component's desired config should not change")
	}
	if !affected.ClearState {
		t.Error("the affected component's state should be cleared")
	}

	assigned, ok := f.cfs.updates["x3000c0s1b0n0"]
	if !ok {
		t.Fatal("assignment target should be updated")
	}
	if assigned.DesiredConfig == nil || *assigned.DesiredConfig != "ncn-personalization" {
		t.Errorf("assignment target desired config = %v", assigned.DesiredConfig)
	}
}

func TestConfigsAssignsUnchangedConfiguration(t *testing.T) {
	f := newFixture()
	f.cfs.configs["ncn-personalization"] = &cfs.Configuration{
		Name: "ncn-personalization",
		Layers: []cfs.Layer{{
			CloneURL: testCloneURL,
			Commit:   testCommit,
			Playbook: "sat-ncn.yml",
		}},
	}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:     testCloneURL,
		Commit:       testCommit,
		Playbooks:    []string{"sat-ncn.yml"},
		State:        cfs.LayerStatePresent,
		BaseConfig:   "ncn-personalization",
		SaveInPlace:  true,
		AssignXNames: []string{"x3000c0s1b0n0"},
	})
	if err != nil {
		t.Fatalf("Configs() returned error: %v", err)
	}

	update, ok := f.cfs.updates["x3000c0s1b0n0"]
	if !ok {
		t.Fatal("an up-to-date configuration should still be assignable")
	}
	if update.DesiredConfig == nil || *update.DesiredConfig != "ncn-personalization" {
		t.Errorf("desired config = %v", update.DesiredConfig)
	}
}

func TestConfigsWaitFailure(t *testing.T) {
	f := newFixture()
	f.waiter.result = wait.Result{Failed: []string{"x3000c0s1b0n0"}}

	err := f.updater.Configs(context.Background(), ConfigsOptions{
		CloneURL:     testCloneURL,
		Commit:       testCommit,
		State:        cfs.LayerStatePresent,
		SaveToCFS:    "new-config",
		AssignXNames: []string{"x3000c0s1b0n0"},
		Wait:         true,
	})
	if err == nil {
		t.Error("expected error when waited-on components fail")
	}
	if !reflect.DeepEqual(f.waiter.gotIDs, []string{"x3000c0s1b0n0"}) {
		t.Errorf("waited on %v", f.waiter.gotIDs)
	}
}

func TestComponentsUpdatesSelected(t *testing.T) {
	f := newFixture()
	desired := "new-config"
	enabled := true

	err := f.updater.Components(context.Background(), ComponentsOptions{
		XNames:        []string{"x3000c0s1b0n0"},
		DesiredConfig: &desired,
		ClearError:    true,
		Enabled:       &enabled,
	})
	if err != nil {
		t.Fatalf("Components() returned error: %v", err)
	}

	update := f.cfs.updates["x3000c0s1b0n0"]
	if update.DesiredConfig == nil || *update.DesiredConfig != "new-config" {
		t.Errorf("desired config = %v", update.DesiredConfig)
	}
	if !update.ClearError {
		t.Error("error count should be cleared")
	}
	if update.Enabled == nil || !*update.Enabled {
		t.Error("component should be enabled")
	}
}

func TestComponentsNoSelection(t *testing.T) {
	f := newFixture()

	if err := f.updater.Components(context.Background(), ComponentsOptions{ClearState: true}); err == nil {
		t.Error("expected error when no components are selected")
	}
}

func TestComponentsCollectsFailures(t *testing.T) {
	f := newFixture()
	f.cfs.updateErrors = map[string]error{"x3000c0s1b0n0": errors.New("conflict")}

	err := f.updater.Components(context.Background(), ComponentsOptions{
		XNames:     []string{"x3000c0s1b0n0", "x3000c0s3b0n0"},
		ClearState: true,
	})
	if err == nil {
		t.Fatal("expected error when a component update fails")
	}
	if !strings.Contains(err.Error(), "x3000c0s1b0n0") {
		t.Errorf("error should name the failed component: %v", err)
	}
}

func TestComponentsWait(t *testing.T) {
	f := newFixture()
	f.waiter.result = wait.Result{Configured: []string{"x3000c0s1b0n0"}}

	err := f.updater.Components(context.Background(), ComponentsOptions{
		XNames:     []string{"x3000c0s1b0n0"},
		ClearState: true,
		Wait:       true,
	})
	if err != nil {
		t.Fatalf("Components() returned error: %v", err)
	}
	if !reflect.DeepEqual(f.waiter.gotIDs, []string{"x3000c0s1b0n0"}) {
		t.Errorf("waited on %v", f.waiter.gotIDs)
	}
}
