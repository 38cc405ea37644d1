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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/talentdesk/mailimport/internal/bulkimport"
	"github.com/talentdesk/mailimport/internal/credentials"
	"github.com/talentdesk/mailimport/internal/inbox"
	"github.com/talentdesk/mailimport/internal/models"
)

var errNoMailbox = errors.New("no mailbox connected - run 'mailimport connect' first")

// ConnectCmd verifies credentials against the gateway and stores them.
type ConnectCmd struct {
	Provider string `help:"Mailbox provider" enum:"gmail,outlook,imap-other" default:"gmail"`
	Username string `help:"Mailbox username" short:"u" required:""`
	Server   string `help:"IMAP server (imap-other only)"`
	Port     int    `help:"IMAP port (imap-other only)" default:"993"`
}

func (c *ConnectCmd) Run(ctx *Context) error {
	password, err := readSecret(os.Stdin, "Password: ")
	if err != nil {
		return err
	}

	cfg, err := c.mailboxConfig(password)
	if err != nil {
		return err
	}

	a, err := ctx.App()
	if err != nil {
		return err
	}
	acc, err := a.Session.Connect(ctx.Ctx, cfg)
	if err != nil {
		return err
	}

	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{
			"success":  true,
			"provider": acc.Config.Provider(),
			"username": acc.Config.Identity(),
		})
	}
	ctx.Printf("Connected %s (%s)\n", acc.Config.Identity(), acc.Config.Provider())
	return nil
}

func (c *ConnectCmd) mailboxConfig(password string) (models.MailboxConfig, error) {
	params := models.ConnectionParams{
		Provider: models.Provider(c.Provider),
		Username: strings.TrimSpace(c.Username),
		Password: password,
	}
	if params.Provider == models.ProviderIMAP {
		params.Server = strings.TrimSpace(c.Server)
		params.Port = c.Port
	}
	cfg, err := params.Config()
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// readSecret reads a secret from MAILIMPORT_PASSWORD, a terminal prompt
// without echo, or the first line of piped input.
func readSecret(in *os.File, prompt string) (string, error) {
	if v := os.Getenv("MAILIMPORT_PASSWORD"); v != "" {
		return v, nil
	}

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// DisconnectCmd wipes the stored mailbox.
type DisconnectCmd struct{}

func (c *DisconnectCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Session.Disconnect(ctx.Ctx); err != nil {
		return err
	}
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{"success": true})
	}
	ctx.Printf("Mailbox disconnected\n")
	return nil
}

// ListCmd lists inbox messages for the stored mailbox.
type ListCmd struct {
	Range       string `help:"Date range" enum:"today,7days,30days,all" default:"7days"`
	Search      string `help:"Match sender, address or subject" short:"s"`
	Attachments bool   `help:"Only messages with attachments"`
	JobRelated  bool   `help:"Only messages that look job related"`
}

func (c *ListCmd) filters() inbox.Filters {
	return inbox.Filters{
		Search:              c.Search,
		DateRange:           inbox.DateRange(c.Range),
		OnlyWithAttachments: c.Attachments,
		OnlyJobRelated:      c.JobRelated,
	}
}

func (c *ListCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	// Refilter on the empty listing only sets the filters Restore fetches with.
	a.Session.Refilter(c.filters())
	restored, err := a.Session.Restore(ctx.Ctx)
	if err != nil {
		return err
	}
	if !restored {
		return errNoMailbox
	}
	msgs := a.Session.Messages()

	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{
			"count":    len(msgs),
			"messages": msgs,
		})
	}
	if len(msgs) == 0 {
		ctx.Printf("No messages found.\n")
		return nil
	}
	return writeMessages(ctx.Out, msgs)
}

func writeMessages(out io.Writer, msgs []models.InboxMessage) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tFROM\tSUBJECT\tRESUMES\tIMPORTED")
	for _, m := range msgs {
		resumes := 0
		for _, att := range m.Attachments {
			if att.IsResume {
				resumes++
			}
		}
		imported := ""
		if m.AlreadyImported {
			imported = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID,
			m.ReceivedAt.Local().Format("2006-01-02 15:04"),
			sender(m.From),
			truncate(m.Subject, 60),
			resumes,
			imported,
		)
	}
	return tw.Flush()
}

func sender(a models.EmailAddress) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ImportCmd runs a bulk import for the stored mailbox.
type ImportCmd struct {
	Range  string `help:"Date range" enum:"today,7days,30days,all" default:"7days"`
	Search string `help:"Match sender, address or subject" short:"s"`
	Limit  int    `help:"Maximum messages to list" short:"n" default:"100"`
	DryRun bool   `help:"Only report what would be imported" name:"dry-run"`
}

func (c *ImportCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	acc, err := a.Credentials.Load()
	if errors.Is(err, credentials.ErrNoAccount) {
		return errNoMailbox
	}
	if err != nil {
		return err
	}

	res, err := a.BulkImport.Run(ctx.Ctx, bulkimport.Request{
		Config:    acc.Config,
		DateRange: inbox.DateRange(c.Range),
		Search:    c.Search,
		Limit:     c.Limit,
		DryRun:    c.DryRun,
	})
	if err != nil {
		return err
	}

	if ctx.Globals.JSON {
		return ctx.PrintJSON(res)
	}
	ctx.Printf("Listed %d, filtered %d, eligible %d, imported %d, skipped %d, failed %d (%s)\n",
		res.Listed, res.Filtered, res.Eligible, res.Imported, res.Skipped, res.Failed, res.Elapsed.Round(time.Millisecond))
	return nil
}

// ConvertCmd converts an approved application.
type ConvertCmd struct {
	ApplicationID string `arg:"" help:"Application ID"`
}

func (c *ConvertCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	id, err := a.Conversion.ConvertApprovedApplicationToCandidate(ctx.Ctx, c.ApplicationID)
	if err != nil {
		if id != "" {
			return fmt.Errorf("candidate %s was created but the application was not marked converted: %w", id, err)
		}
		return err
	}
	if ctx.Globals.JSON {
		return ctx.PrintJSON(map[string]any{"success": true, "candidateId": id})
	}
	ctx.Printf("Created candidate %s\n", id)
	return nil
}
