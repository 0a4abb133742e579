// Copyright 2024 The Genie Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestAddOrUpdateProfile(t *testing.T) {
	c := &Config{}

	if err := c.AddOrUpdateProfile("dev", Profile{}); err == nil {
		t.Error("profile without a type should be rejected")
	}

	p := Profile{Type: TokenProfileType, Token: "t1"}
	if err := c.AddOrUpdateProfile("dev", p); err != nil {
		t.Fatalf("AddOrUpdateProfile(...): %v", err)
	}

	updated := Profile{Type: TokenProfileType, Token: "t2"}
	if err := c.AddOrUpdateProfile("dev", updated); err != nil {
		t.Fatalf("AddOrUpdateProfile(...): %v", err)
	}
	got, err := c.GetProfile("dev")
	if err != nil {
		t.Fatalf("GetProfile(dev): %v", err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Errorf("profile: -want, +got:\n%s", diff)
	}
}

func TestDefaultProfile(t *testing.T) {
	c := &Config{}

	if _, err := c.GetDefaultProfile(); err == nil {
		t.Error("empty config should have no default profile")
	}
	if err := c.SetDefaultProfile("missing"); err == nil {
		t.Error("setting an unknown default should fail")
	}

	p := Profile{Type: TokenProfileType, Token: "t1"}
	if err := c.AddOrUpdateProfile("dev", p); err != nil {
		t.Fatalf("AddOrUpdateProfile(...): %v", err)
	}
	if err := c.SetDefaultProfile("dev"); err != nil {
		t.Fatalf("SetDefaultProfile(dev): %v", err)
	}

	got, err := c.GetDefaultProfile()
	if err != nil {
		t.Fatalf("GetDefaultProfile(): %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("default profile: -want, +got:\n%s", diff)
	}

	// A default pointing at a removed profile surfaces as an error.
	delete(c.Genie.Profiles, "dev")
	if _, err := c.GetDefaultProfile(); err == nil {
		t.Error("dangling default should fail")
	}
}

func TestFSSourceRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	home := func() (string, error) { return "/home/user", nil }

	src, err := NewFSSource(WithFS(fs), WithHomeDirFn(home))
	if err != nil {
		t.Fatalf("NewFSSource(...): %v", err)
	}

	// A fresh source initializes an empty config file.
	conf, err := src.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig(): %v", err)
	}
	if len(conf.Genie.Profiles) != 0 {
		t.Errorf("fresh config should be empty, got %+v", conf)
	}

	if err := conf.AddOrUpdateProfile("dev", Profile{Type: TokenProfileType, Token: "t1"}); err != nil {
		t.Fatalf("AddOrUpdateProfile(...): %v", err)
	}
	if err := conf.SetDefaultProfile("dev"); err != nil {
		t.Fatalf("SetDefaultProfile(dev): %v", err)
	}
	if err := src.UpdateConfig(conf); err != nil {
		t.Fatalf("UpdateConfig(...): %v", err)
	}

	// A second source over the same filesystem sees the persisted config.
	again, err := NewFSSource(WithFS(fs), WithHomeDirFn(home))
	if err != nil {
		t.Fatalf("NewFSSource(...): %v", err)
	}
	got, err := again.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig(): %v", err)
	}
	if diff := cmp.Diff(conf, got); diff != "" {
		t.Errorf("persisted config: -want, +got:\n%s", diff)
	}
}
