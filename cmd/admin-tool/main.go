// Command admin-tool issues admin tokens and seals provider credentials.
//
//	admin-tool token -id 42 -role admin -ttl 1h
//	admin-tool genkey
//	admin-tool seal -provider openai < api_key.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"catalog_gateway/internal/auth"
	"catalog_gateway/internal/config"
	"catalog_gateway/internal/providers"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fail(err)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = issueToken(os.Args[2:])
	case "genkey":
		err = generateKey()
	case "seal":
		err = sealCredential(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin-tool token|genkey|seal [flags]")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	id := fs.String("id", "", "admin id recorded as triggered_by")
	role := fs.String("role", string(auth.RoleViewer), "admin or viewer")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	service := fs.Bool("service", false, "issue a service token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	authType := auth.AuthTypeUser
	if *service {
		authType = auth.AuthTypeService
	}

	token, exp, err := auth.GenerateAdminJWT(*id, []auth.Role{auth.Role(*role)}, authType, *ttl, &config.Config{JWTSecret: []byte(secret)})
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", exp.Format(time.RFC3339))
	return nil
}

func generateKey() error {
	key, err := providers.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func sealCredential(args []string) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	provider := fs.String("provider", "", "provider slug the key belongs to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *provider == "" {
		return fmt.Errorf("-provider is required")
	}

	sealer, err := providers.NewSealerFromBase64(os.Getenv("PROVIDER_CREDENTIALS_KEY"))
	if err != nil {
		return err
	}

	secret, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && secret == "" {
		return fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("empty secret")
	}

	sealed, err := sealer.Seal(strings.ToLower(*provider), secret)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}
