package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/migration"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/observability"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/user"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

const usage = `usage: speechctl <command> [flags]

commands:
  create-user   -email <email> -name <display name> -password <password> [-role user|admin|super-admin]
  issue-token   -user-id <id>
`

var errUsage = errors.New("usage")

type services struct {
	users    userdomain.Service
	identity identitydomain.Service
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "speechctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "create-user":
		fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
		email := fs.String("email", "", "login email")
		name := fs.String("name", "", "display name")
		password := fs.String("password", "", "initial password")
		role := fs.String("role", string(userdomain.RoleUser), "user, admin or super-admin")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		return withServices(func(ctx context.Context, svc services) error {
			resp, err := svc.users.Create(ctx, userdomain.CreateRequest{
				DisplayName: strings.TrimSpace(*name),
				Email:       strings.TrimSpace(*email),
				Password:    *password,
				Role:        userdomain.Role(strings.TrimSpace(*role)),
			})
			if err != nil {
				return err
			}
			return writeJSON(out, resp)
		})
	case "issue-token":
		fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
		rawID := fs.String("user-id", "", "user to issue a bearer token for")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		userID, err := snowflake.ParseString(strings.TrimSpace(*rawID))
		if err != nil || userID == 0 {
			return fmt.Errorf("invalid -user-id %q", *rawID)
		}
		return withServices(func(ctx context.Context, svc services) error {
			session, err := svc.identity.IssueSession(ctx, userID)
			if err != nil {
				return err
			}
			return writeJSON(out, session)
		})
	default:
		return errUsage
	}
}

// withServices boots the storage and identity graph without the HTTP server or scheduler.
func withServices(fn func(ctx context.Context, svc services) error) error {
	var svc services
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		user.Module,
		identity.Module,
		fx.Populate(&svc.users, &svc.identity),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	return fn(ctx, svc)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Node 2 keeps ids minted here disjoint from the API process on node 1.
func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
