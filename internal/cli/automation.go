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

package cli

import (
	"errors"
	"strings"

	"github.com/talentdesk/mailimport/internal/app"
	"github.com/talentdesk/mailimport/internal/credentials"
	"github.com/talentdesk/mailimport/internal/models"
)

// AutomationCmd manages server-side polling for the stored mailbox.
type AutomationCmd struct {
	On        AutomationOnCmd        `cmd:"" help:"Enable automation"`
	Off       AutomationOffCmd       `cmd:"" help:"Disable automation"`
	Status    AutomationStatusCmd    `cmd:"" help:"Show automation status"`
	Check     AutomationCheckCmd     `cmd:"" help:"Poll the mailbox now"`
	Unmonitor AutomationUnmonitorCmd `cmd:"" help:"Stop monitoring an address"`
	Global    AutomationGlobalCmd    `cmd:"" help:"Start or stop the gateway's global poller"`
}

type AutomationOnCmd struct{}

type AutomationOffCmd struct{}

type AutomationStatusCmd struct {
	NoCache bool `help:"Bypass gateway caches" name:"no-cache"`
}

type AutomationCheckCmd struct {
	Account string `help:"Automation account ID (defaults to the stored mailbox's)"`
}

type AutomationUnmonitorCmd struct {
	Address string `arg:"" help:"Address to stop monitoring"`
}

type AutomationGlobalCmd struct {
	State string `arg:"" enum:"on,off" help:"on or off"`
}

// attached builds the app and attaches the stored mailbox.
func attached(ctx *Context) (*app.App, error) {
	a, err := ctx.App()
	if err != nil {
		return nil, err
	}
	if _, err := a.AttachStored(); err != nil {
		if errors.Is(err, credentials.ErrNoAccount) {
			return nil, errNoMailbox
		}
		return nil, err
	}
	return a, nil
}

func (c *AutomationOnCmd) Run(ctx *Context) error  { return toggle(ctx, true) }
func (c *AutomationOffCmd) Run(ctx *Context) error { return toggle(ctx, false) }

func toggle(ctx *Context, enabled bool) error {
	a, err := attached(ctx)
	if err != nil {
		return err
	}
	if err := a.Automation.ToggleAutomation(ctx.Ctx, enabled); err != nil {
		return err
	}
	// The CLI exits right away; the gateway does the polling.
	a.Automation.Detach()
	return printStatus(ctx, a.Automation.State().String(), a.Automation.Status())
}

func (c *AutomationStatusCmd) Run(ctx *Context) error {
	a, err := attached(ctx)
	if err != nil {
		return err
	}
	status, err := a.Automation.RefreshStatus(ctx.Ctx, c.NoCache)
	if err != nil {
		return err
	}
	return printStatus(ctx, a.Automation.State().String(), status)
}

func (c *AutomationCheckCmd) Run(ctx *Context) error {
	a, err := attached(ctx)
	if err != nil {
		return err
	}
	res, err := a.Automation.ForceCheckNow(ctx.Ctx, c.Account)
	if res == nil {
		return err
	}
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{"result": res, "status": a.Automation.Status()})
	}
	ctx.Printf("Imported %d new candidate(s)\n", res.Imported)
	return err
}

func (c *AutomationUnmonitorCmd) Run(ctx *Context) error {
	a, err := attached(ctx)
	if err != nil {
		return err
	}
	left, err := a.Automation.RemoveMonitoredAddress(ctx.Ctx, c.Address)
	if err != nil {
		return err
	}
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{"monitoredAddresses": left})
	}
	ctx.Printf("Stopped monitoring %s; %d address(es) still monitored\n", c.Address, len(left))
	return nil
}

func (c *AutomationGlobalCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Automation.SetGlobalAutomation(ctx.Ctx, c.State == "on"); err != nil {
		return err
	}
	ctx.Printf("Global automation %s\n", c.State)
	return nil
}

func printStatus(ctx *Context, state string, s models.AutomationStatus) error {
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{"state": state, "status": s})
	}
	enabled := "disabled"
	if s.Enabled {
		enabled = "enabled"
	}
	last := "never"
	if s.LastChecked != nil {
		last = s.LastChecked.Local().Format("2006-01-02 15:04:05")
	}
	ctx.Printf("Automation:     %s (%s)\n", enabled, state)
	ctx.Printf("Last checked:   %s\n", last)
	ctx.Printf("Total imported: %d\n", s.TotalImported)
	ctx.Printf("Recent imports: %d\n", s.RecentImports)
	if len(s.MonitoredAddresses) > 0 {
		ctx.Printf("Monitoring:     %s\n", strings.Join(s.MonitoredAddresses, ", "))
	}
	return nil
}

