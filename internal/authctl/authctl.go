// Package authctl implements the operator commands of the authctl binary:
// creating accounts and revoking sessions directly against the store.
package authctl

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/services"
)

// Service is what the commands need from services.AuthService.
type Service interface {
	Register(ctx context.Context, p services.RegisterParams) (*models.User, error)
	RevokeAll(ctx context.Context, email string) (int64, error)
}

type Command struct {
	svc    Service
	reader *bufio.Reader
	out    io.Writer
}

func New(svc Service, reader *bufio.Reader, out io.Writer) *Command {
	return &Command{svc: svc, reader: reader, out: out}
}

func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: authctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  register -email <email> [-name <name>] [-roles a,b]   create an account (password is prompted)")
	fmt.Fprintln(w, "  revoke   -email <email>                               delete every refresh token of the user")
}

func (c *Command) Run(ctx context.Context, name string, args []string) error {
	switch name {
	case "register":
		return c.register(ctx, args)
	case "revoke":
		return c.revoke(ctx, args)
	default:
		Usage(c.out)
		return fmt.Errorf("unknown command %q", name)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// ownArgs drops the server config flags LoadConfig already consumed.
func ownArgs(args []string, allowed ...string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		keep["-"+a] = struct{}{}
		keep["--"+a] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, _, hasValue := strings.Cut(args[i], "=")
		if _, ok := keep[name]; !ok {
			continue
		}
		out = append(out, args[i])
		if !hasValue && i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

func (c *Command) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register", c.out)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	roles := fs.String("roles", "", "comma separated roles")
	if err := fs.Parse(ownArgs(args, "email", "name", "roles")); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = GetSimpleText(c.reader, "Email", c.out); err != nil {
			return err
		}
	}

	pw, err := GetPassword(c.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(c.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}

	var roleList []string
	if *roles != "" {
		roleList = strings.Split(*roles, ",")
	}

	u, err := c.svc.Register(ctx, services.RegisterParams{
		Email:    *email,
		Password: string(pw),
		Name:     *name,
		Roles:    roleList,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "registered %s id=%s\n", u.Email, u.ID)
	return nil
}

func (c *Command) revoke(ctx context.Context, args []string) error {
	fs := newFlagSet("revoke", c.out)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(ownArgs(args, "email")); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%w: -email is required", common.ErrValidation)
	}

	n, err := c.svc.RevokeAll(ctx, *email)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "revoked %d refresh token(s) for %s\n", n, *email)
	return nil
}
