// Copyright (c) 2016-2024 Tigera, Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

// Applier programs a calculated Update into the dataplane.  Apply should either make all of the
// update or none of it; the controller assumes that nothing changed if it returns an error.
type Applier interface {
	Apply(update *Update) error
}

type ApplierFunc func(update *Update) error

func (f ApplierFunc) Apply(update *Update) error {
	return f(update)
}
