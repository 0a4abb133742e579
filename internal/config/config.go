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

// Package config models the genie configuration file and its profiles.
package config

import (
	"github.com/pkg/errors"
)

// Location of the genie config file.
const (
	ConfigDir  = ".genie"
	ConfigFile = "config.json"
)

const (
	errDefaultNotExist    = "profile specified as default does not exist"
	errNoDefaultSpecified = "no default profile specified"
	errInvalidProfile     = "profile is not valid"

	errProfileNotFoundFmt = "profile not found with identifier: %s"
)

// Config is the format of the genie configuration file.
type Config struct {
	Genie Genie `json:"genie"`
}

// Genie contains the credential profiles for the data platform.
type Genie struct {
	// Default indicates the default profile.
	Default string `json:"default"`

	// Profiles contain sets of credentials for communicating with the
	// platform.
	Profiles map[string]Profile `json:"profiles,omitempty"`
}

// ProfileType is a type of credential profile.
type ProfileType string

// Types of profiles.
const (
	UserProfileType  ProfileType = "user"
	TokenProfileType ProfileType = "token"
)

// A Profile is a set of credentials.
type Profile struct {
	// Type is the type of the profile.
	Type ProfileType `json:"type"`

	// Token is the bearer token used to authenticate to the platform.
	Token string `json:"token,omitempty"`
}

// checkProfile ensures a profile does not violate constraints.
func checkProfile(p Profile) error {
	if p.Type == "" {
		return errors.New(errInvalidProfile)
	}
	return nil
}

// AddOrUpdateProfile adds or updates a profile in the Config.
func (c *Config) AddOrUpdateProfile(id string, new Profile) error {
	if err := checkProfile(new); err != nil {
		return err
	}
	if c.Genie.Profiles == nil {
		c.Genie.Profiles = map[string]Profile{}
	}
	c.Genie.Profiles[id] = new
	return nil
}

// GetDefaultProfile gets the default profile or returns an error if default
// is not set or the default profile does not exist.
func (c *Config) GetDefaultProfile() (Profile, error) {
	if c.Genie.Default == "" {
		return Profile{}, errors.New(errNoDefaultSpecified)
	}
	p, ok := c.Genie.Profiles[c.Genie.Default]
	if !ok {
		return Profile{}, errors.New(errDefaultNotExist)
	}
	return p, nil
}

// GetProfile gets a profile with a given identifier. If a profile does not
// exist for the given identifier an error will be returned.
func (c *Config) GetProfile(id string) (Profile, error) {
	p, ok := c.Genie.Profiles[id]
	if !ok {
		return Profile{}, errors.Errorf(errProfileNotFoundFmt, id)
	}
	return p, nil
}

// SetDefaultProfile sets the default profile. Setting a default profile
// that does not exist will return an error.
func (c *Config) SetDefaultProfile(id string) error {
	if _, ok := c.Genie.Profiles[id]; !ok {
		return errors.Errorf(errProfileNotFoundFmt, id)
	}
	c.Genie.Default = id
	return nil
}
