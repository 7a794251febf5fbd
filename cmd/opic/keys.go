package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opic-systems/opic/core/pkg/certificate"
	"github.com/opic-systems/opic/core/pkg/config"
)

func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: opic keygen <ca-id>")
		return 2
	}
	caID := args[0]
	cfg := config.Load()

	ring := certificate.NewKeyring()
	_ = ring.Load(cfg.KeyDir) // a fresh directory is fine
	if _, err := ring.Generate(caID); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := ring.Save(cfg.KeyDir); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	pub, _ := ring.PublicKeyHex(caID)
	_, _ = fmt.Fprintf(stdout, "ca: %s\npublic_key: %s\n", caID, pub)
	return 0
}

func runIssueCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	issuer := fs.String("issuer", "opic-cli", "issuer id")
	subject := fs.String("subject", "", "subject id")
	grants := fs.String("grant", "", "comma-separated resource:action grants")
	asToken := fs.Bool("token", false, "emit as a signed transport token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime (with -token)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *subject == "" || *grants == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: opic issue -subject <id> -grant <resource:action,...> [-token]")
		return 2
	}

	var perms []certificate.Permission
	for _, g := range strings.Split(*grants, ",") {
		resource, action, ok := strings.Cut(strings.TrimSpace(g), ":")
		if !ok || resource == "" || action == "" {
			_, _ = fmt.Fprintf(stderr, "error: bad grant %q, want resource:action\n", g)
			return 2
		}
		perms = append(perms, certificate.Permission{Resource: resource, Action: action})
	}

	cfg := config.Load()
	ring := certificate.NewKeyring()
	if err := ring.Load(cfg.KeyDir); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: keyring: %v (run 'opic keygen %s' first)\n", err, cfg.CAID)
		return 1
	}
	key, ok := ring.Key(cfg.CAID)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "error: no key for ca %q (run 'opic keygen %s' first)\n", cfg.CAID, cfg.CAID)
		return 1
	}

	cert, err := certificate.Issue(*issuer, *subject, perms, cfg.RealmID, cfg.CAID, key)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if *asToken {
		token, err := certificate.ExportToken(cert, key, *ttl)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, token)
		return 0
	}
	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}
