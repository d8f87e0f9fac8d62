// Copyright (c) 2020 The Bluge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collector

import "github.com/blugelabs/queryproc/rlookup"

// WithSize returns a copy of cfg with Size set to n, following the
// teacher's value-receiver functional-options idiom (index.Config's
// WithXxx methods) for constructors with several optional knobs.
func (cfg Config) WithSize(n int) Config {
	cfg.Size = n
	return cfg
}

// WithSkip returns a copy of cfg with Skip set to n.
func (cfg Config) WithSkip(n int) Config {
	cfg.Skip = n
	return cfg
}

// WithLoader returns a copy of cfg configured to resolve keys via lookup
// and loader, deriving the actual load plan from the first OK result the
// sorter sees (see resolveSortKeys).
func (cfg Config) WithLoader(lookup *rlookup.Lookup, loader rlookup.Loader, keys ...*rlookup.Key) Config {
	cfg.Lookup = lookup
	cfg.Loader = loader
	cfg.Keys = keys
	return cfg
}
