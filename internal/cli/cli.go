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

// Package cli implements the mailimport command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/talentdesk/mailimport/internal/app"
	"github.com/talentdesk/mailimport/internal/config"
)

var Version = "0.1.0"

type Globals struct {
	JSON    bool   `help:"Output as JSON" name:"json"`
	Config  string `help:"Path to config file" short:"c" type:"path" env:"CONFIG_PATH"`
	Verbose bool   `help:"Verbose logging" short:"v"`
}

type CLI struct {
	Globals

	Connect    ConnectCmd    `cmd:"" help:"Verify and store a mailbox"`
	Disconnect DisconnectCmd `cmd:"" help:"Forget the stored mailbox"`
	List       ListCmd       `cmd:"" help:"List inbox messages"`
	Import     ImportCmd     `cmd:"" help:"Import every resume in a date window"`
	Automation AutomationCmd `cmd:"" help:"Server-side mailbox automation"`
	Convert    ConvertCmd    `cmd:"" help:"Convert an approved application into a candidate"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// Context is passed to every command's Run method.
type Context struct {
	Ctx     context.Context
	Globals *Globals
	Out     io.Writer

	build func(ctx context.Context) (*app.App, error)
	app   *app.App
}

// NewContext prepares the command context. Components are built on first
// use so that version and help need no database.
func NewContext(ctx context.Context, globals *Globals) *Context {
	level := "warn"
	if globals.Verbose {
		level = "debug"
	}
	app.SetupLogging(level)

	if globals.Config != "" {
		os.Setenv("CONFIG_PATH", globals.Config)
	}

	return &Context{
		Ctx:     ctx,
		Globals: globals,
		Out:     os.Stdout,
		build: func(ctx context.Context) (*app.App, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return app.New(ctx, cfg)
		},
	}
}

// App returns the wired components, building them once.
func (c *Context) App() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := c.build(c.Ctx)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// Close releases the components if they were built.
func (c *Context) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// PrintJSON writes v as indented JSON.
func (c *Context) PrintJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]string{"version": Version})
	}
	ctx.Printf("mailimport %s\n", Version)
	return nil
}
