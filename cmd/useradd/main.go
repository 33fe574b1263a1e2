// Command useradd creates a user in the session database. The password is
// read from the terminal, or from the first line of stdin when piped.
//
//	useradd -email alice@example.com [-admin=true] [server flags]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/flagx"
	"github.com/dmitrijs2005/authsession/internal/server"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/services"
	"golang.org/x/term"
)

func main() {

	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	email := fs.String("email", "", "email of the new user")
	admin := fs.Bool("admin", false, "grant admin rights")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "-admin"}))

	if *email == "" {
		log.Fatal("-email is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.StorageBackend == config.StorageMemory {
		log.Fatal("useradd needs a persistent storage backend")
	}

	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	defer common.WipeByteArray(password)

	ctx := context.Background()

	storage, err := server.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer storage.Close()

	svc := services.NewUserService(storage.Users(), auth.NewBcryptHasher(cfg.PasswordHashCost))

	user, err := svc.Register(ctx, *email, string(password), *admin)
	switch {
	case errors.Is(err, common.ErrorAlreadyExists):
		log.Fatalf("user %s already exists", *email)
	case err != nil:
		log.Fatalf("%v", err)
	}

	fmt.Println(user.ID)
}

func readPassword(in *os.File, w io.Writer) ([]byte, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(w, "Enter password: ")
		pw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(w)
		return pw, err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
