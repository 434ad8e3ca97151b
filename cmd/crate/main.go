package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/crate/pkg/api/client"
)

var buildVersion = "dev"

const requestTimeout = 15 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "signup":
		err = commandSignup(args)
	case "login":
		err = commandLogin(args)
	case "me":
		err = commandMe(args)
	case "items":
		err = commandItems(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	first := fs.String("first-name", "", "First name")
	last := fs.String("last-name", "", "Last name")
	role := fs.String("role", "listener", "Account role (artist|listener)")
	apiBase := fs.String("api", "", "API base URL including version prefix")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, client, err := connect(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	session, err := client.Signup(ctx, apiclient.SignupInput{
		Email:     strings.TrimSpace(*email),
		Password:  secret,
		FirstName: *first,
		LastName:  *last,
		Role:      *role,
	})
	if err != nil {
		return err
	}
	cfg.AccessToken = session.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("registered %s as %s\n", session.User.Email, session.User.Role)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL including version prefix")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, client, err := connect(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	session, err := client.Login(ctx, strings.TrimSpace(*email), secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = session.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandMe(args []string) error {
	fs := flag.NewFlagSet("me", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := client.Me(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s %s\t%s\n", user.Email, user.FirstName, user.LastName, user.Role)
	return nil
}

// readSecret prompts on the terminal unless a password flag was given.
func readSecret(flagValue string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func connect(apiBase string) (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = strings.TrimSpace(apiBase)
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func authenticated() (*apiclient.Client, string, error) {
	cfg, client, err := connect("")
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'crate login'")
	}
	return client, token, nil
}

func printUsage() {
	fmt.Printf("crate CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	crate signup --email user@example.com --first-name Jane --last-name Doe [--role artist|listener] [--password secret] [--api URL]
	crate login --email user@example.com [--password secret] [--api URL]
	crate me
	crate items list
	crate items create --title <title> [--description text] [--public=true|false]
	crate items get --id <item-id>
	crate items update --id <item-id> [--title t] [--description text] [--public=true|false]
	crate items delete --id <item-id>
	crate version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
