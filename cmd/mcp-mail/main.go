// mcp-mail exposes mailbox read/delete and message send operations as MCP
// tools over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/mailbridge/mcp-mail/pkgs/config"
	"github.com/mailbridge/mcp-mail/pkgs/mailtool"
)

const version = "1.0.0"

func main() {
	envFile := flag.String("env-file", "", "Dotenv file layered below the environment (./.env is read when present)")
	verbose := flag.BoolP("verbose", "v", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mcp-mail v%s\n", version)
		os.Exit(0)
	}

	log := newLogger(*verbose)

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Error("configuration is incomplete, server cannot start")
		os.Exit(1)
	}

	svc := mailtool.NewService(cfg, log)

	server := mcp.NewServer(&mcp.Implementation{Name: "email-mcp-server", Version: version}, nil)
	registerTools(server, svc)

	log.Info("starting MCP email server on stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

// newLogger builds a stderr logger so tool framing on stdout stays clean.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Tool argument and result shapes. Map keys must be strings on the wire,
// so deletion failures are re-keyed from the int IDs the service uses.

type idArgs struct {
	IDs []int `json:"ids"`
}

type sendArgs struct {
	FromAddress string   `json:"fromAddress"`
	ToAddresses []string `json:"toAddresses"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
}

type pollResult struct {
	Emails []mailtool.EmailSummary `json:"emails"`
}

type fetchResult struct {
	Emails []mailtool.FetchedEmail `json:"emails"`
}

type deleteResult struct {
	Deleted []int             `json:"deleted"`
	Failed  map[string]string `json:"failed"`
}

func registerTools(server *mcp.Server, svc *mailtool.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "pollEmails",
		Description: "Polls the mailbox for a list of all email headers, providing a summary of each email.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, pollResult, error) {
		emails, err := svc.PollEmails()
		if err != nil {
			return nil, pollResult{}, fmt.Errorf("failed to poll emails: %w", err)
		}
		return nil, pollResult{Emails: emails}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "getEmailsById",
		Description: "Retrieves the full content (headers and body) of the emails with the given session-local IDs.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idArgs) (*mcp.CallToolResult, fetchResult, error) {
		emails, err := svc.GetEmailsByID(args.IDs)
		if err != nil {
			return nil, fetchResult{}, fmt.Errorf("failed to get emails by ID: %w", err)
		}
		return nil, fetchResult{Emails: emails}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deleteEmailsById",
		Description: "Deletes the emails with the given session-local IDs. Deletion is committed when the mailbox session closes; previously polled IDs are invalid afterwards.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idArgs) (*mcp.CallToolResult, deleteResult, error) {
		res, err := svc.DeleteEmailsByID(args.IDs)
		if err != nil {
			return nil, deleteResult{}, fmt.Errorf("failed to delete emails by ID: %w", err)
		}
		out := deleteResult{Deleted: res.Deleted, Failed: map[string]string{}}
		for id, reason := range res.Failed {
			out.Failed[strconv.Itoa(id)] = reason
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sendTextEmail",
		Description: "Sends a plain text email using the configured SMTP server.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sendArgs) (*mcp.CallToolResult, mailtool.SendResult, error) {
		res := svc.SendTextEmail(args.FromAddress, args.ToAddresses, args.Subject, args.Body)
		return nil, *res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sendHtmlEmail",
		Description: "Sends an HTML email using the configured SMTP server.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sendArgs) (*mcp.CallToolResult, mailtool.SendResult, error) {
		res := svc.SendHTMLEmail(args.FromAddress, args.ToAddresses, args.Subject, args.Body)
		return nil, *res, nil
	})
}
