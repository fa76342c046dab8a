// Command sieveparse is a peripheral CLI over the sieve package: it parses
// a Sieve script and reports syntax errors, and optionally exercises
// managesieve.Client against a live server.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/sieveforge/sievekit/config"
	"github.com/sieveforge/sievekit/managesieve"
	"github.com/sieveforge/sievekit/managesieve/sasl"
	"github.com/sieveforge/sievekit/sieve"
	"github.com/sieveforge/sievekit/sieve/parser"
)

var (
	loginHost  = flag.String("login", "", "ManageSieve host to authenticate against, e.g. mail.example.com")
	loginUser  = flag.String("user", "", "username for -login")
	useTLS     = flag.Bool("tls", true, "use STARTTLS when -login is given")
	configPath = flag.String("config", "", "INI config file with connection defaults for -login")
)

func main() {
	flag.Parse()
	args := flag.Args()

	if *loginHost != "" {
		if err := runLogin(*loginHost, *loginUser); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: sieveparse <path>")
		os.Exit(2)
	}

	b, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := sieve.Parse(string(b)); err != nil {
		if pe, ok := err.(*parser.ParseError); ok {
			fmt.Printf("line %d: %s\n", pe.Line, pe.Message)
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
	fmt.Println("Syntax OK")
}

// newClient builds a managesieve.Client for host, either from -config (when
// given) or from the -login/-tls flags directly.
func newClient(host, user string) (*managesieve.Client, int, error) {
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, 0, fmt.Errorf("sieveparse: reading -config: %w", err)
		}
		cc, err := config.LoadConfigBytes(b)
		if err != nil {
			return nil, 0, fmt.Errorf("sieveparse: parsing -config: %w", err)
		}
		c, err := managesieve.NewFromConfig(cc, nil)
		if err != nil {
			return nil, 0, err
		}
		return c, cc.Global.Port, nil
	}

	opts := managesieve.Opts{Host: host}
	if *useTLS {
		opts.TLSConfig = &tls.Config{ServerName: host}
	}
	return managesieve.New(opts), 4190, nil
}

func runLogin(host, user string) error {
	if user == "" {
		return fmt.Errorf("sieveparse: -user is required with -login")
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("sieveparse: reading password: %w", err)
	}

	c, port, err := newClient(host, user)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := c.Connect(ctx, host, port); err != nil {
		return err
	}
	if err := c.Authenticate(sasl.NewPlain(sasl.Credentials{Username: user, Password: string(pass)})); err != nil {
		return err
	}

	scripts, active, err := c.ListScripts()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, s := range scripts {
		marker := " "
		if s.Name == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, s.Name)
	}
	return c.Logout()
}
