// Copyright 2025 Google LLC
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

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
)

// credentialEnv maps providers to the variable holding their API key.
// Providers not listed need no key.
var credentialEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"grok":      "GROK_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// loadEnvFile loads path into the environment. Variables that are already
// set win, and a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			klog.V(2).InfoS("No env file", "path", path)
			return nil
		}
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	klog.V(1).InfoS("Loaded env file", "path", path)
	return nil
}

// requireCredentials fails when a provider's API key is not set.
func requireCredentials(providers ...string) error {
	for _, p := range providers {
		env, ok := credentialEnv[p]
		if !ok {
			continue
		}
		if os.Getenv(env) == "" {
			return fmt.Errorf("%w: %s is not set; export it or add it to your .env file to use provider %q",
				gollm.ErrMissingCredentials, env, p)
		}
	}
	return nil
}
