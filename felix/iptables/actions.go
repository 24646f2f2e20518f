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

package iptables

type Action interface {
	ToFragment() string
	String() string
}

// GotoAction transfers evaluation to the target chain.  A RETURN from the target chain does not
// come back to the calling chain.
type GotoAction struct {
	Target string
}

func (g GotoAction) ToFragment() string {
	return "--goto " + g.Target
}

func (g GotoAction) String() string {
	return "Goto->" + g.Target
}

type DropAction struct{}

func (d DropAction) ToFragment() string {
	return "--jump DROP"
}

func (d DropAction) String() string {
	return "Drop"
}

// ChainTarget returns the user chain that the action passes the packet to, if any.
func ChainTarget(a Action) (string, bool) {
	if g, ok := a.(GotoAction); ok {
		return g.Target, true
	}
	return "", false
}
