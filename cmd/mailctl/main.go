// mailctl runs the mail tool operations directly from the command line,
// printing JSON results to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/mailbridge/mcp-mail/pkgs/config"
	"github.com/mailbridge/mcp-mail/pkgs/mailtool"
)

const version = "1.0.0"

func main() {
	envFile := flag.String("env-file", "", "Dotenv file layered below the environment (./.env is read when present)")
	verbose := flag.BoolP("verbose", "v", false, "Verbose logging on stderr")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("mailctl v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatal("config: %v", err)
	}
	svc := mailtool.NewService(cfg, log)

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "poll":
		emails, err := svc.PollEmails()
		if err != nil {
			fatal("poll: %v", err)
		}
		printJSON(emails)

	case "get":
		ids, err := parseIDs(cmdArgs)
		if err != nil {
			fatal("get: %v", err)
		}
		emails, err := svc.GetEmailsByID(ids)
		if err != nil {
			fatal("get: %v", err)
		}
		printJSON(emails)

	case "delete":
		ids, err := parseIDs(cmdArgs)
		if err != nil {
			fatal("delete: %v", err)
		}
		result, err := svc.DeleteEmailsByID(ids)
		if err != nil {
			fatal("delete: %v", err)
		}
		printJSON(result)

	case "send":
		f := parseSendFlags(cmdArgs)
		from := f.from
		if from == "" {
			from = cfg.User
		}
		var result *mailtool.SendResult
		if f.html {
			result = svc.SendHTMLEmail(from, splitRecipients(f.to), f.subject, f.body)
		} else {
			result = svc.SendTextEmail(from, splitRecipients(f.to), f.subject, f.body)
		}
		printJSON(result)
		if result.Error != "" {
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

type sendFlags struct {
	from, to, subject, body string
	html                    bool
}

func parseSendFlags(args []string) sendFlags {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	var f sendFlags
	fs.StringVar(&f.from, "from", "", "Sender address (defaults to EMAIL_USER)")
	fs.StringVar(&f.to, "to", "", "Recipients (comma-separated)")
	fs.StringVar(&f.subject, "subject", "", "Email subject")
	fs.StringVar(&f.body, "body", "", "Email body")
	fs.BoolVar(&f.html, "html", false, "Send the body as text/html instead of text/plain")
	if err := fs.Parse(args); err != nil {
		fatal("send: %v", err)
	}
	if f.to == "" {
		fatal("send: --to is required")
	}
	if f.body == "" {
		fatal("send: --body is required")
	}
	return f
}

// parseIDs accepts IDs as separate arguments or comma-separated lists.
func parseIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one message ID is required")
	}
	var ids []int
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid message ID: %s", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, addr := range strings.Split(s, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode result: %v", err)
	}
	fmt.Println(string(data))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mailctl v%s - mailbox and send operations over POP3/SMTP

Usage:
  mailctl [flags] <command> [args]

Commands:
  poll                    List summary headers for every message
  get <id>...             Fetch full messages by session-local ID
  delete <id>...          Delete messages by session-local ID
  send [flags]            Send an email (--to, --subject, --body, [--html])

Flags:
`, version)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Configuration comes from the environment, layered over --env-file or a
./.env file when one exists:
  EMAIL_USER, EMAIL_PASS, POP3_SERVER, POP3_PORT,
  SMTP_SERVER, SMTP_PORT, SMTP_USE_SSL

Message IDs are assigned per POP3 session and shift after deletions:
always poll before get or delete.
`)
}
