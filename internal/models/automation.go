// Copyright (c) 2026 John Earle
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

package models

import "time"

// AutomationStatus is the locally cached view of server-side automation.
// The gateway is authoritative; this copy is overwritten on every refresh.
type AutomationStatus struct {
	Enabled            bool       `json:"enabled"`
	LastChecked        *time.Time `json:"lastChecked"`
	TotalImported      int        `json:"totalImported"`
	MonitoredAddresses []string   `json:"monitoredAddresses"`
	RecentImports      int        `json:"recentImports"`
}

// AutomationAccount is the gateway's record of a monitored mailbox.
type AutomationAccount struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Provider      Provider   `json:"provider"`
	Enabled       bool       `json:"enabled"`
	LastCheckedAt *time.Time `json:"lastCheckedAt"`
	TotalImported int        `json:"totalImported"`
}

// CheckResult summarises one forced check-and-import cycle.
type CheckResult struct {
	Imported  int        `json:"imported"`
	CheckedAt *time.Time `json:"checkedAt"`
}
