package main

import (
	"crypto/rand"
	"fmt"
	"io"

	"xdao.co/pixzle/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "pixzle key: local signing keys for manifests")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pixzle key init --name <name> [--seed-hex <64hex>] [--algorithm ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  pixzle key derive --from <name> --role <role> [--algorithm ...] [--force]")
	fmt.Fprintln(w, "  pixzle key list")
	fmt.Fprintln(w, "  pixzle key export --name <name> [--role <role>] [--algorithm ...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keys live under ~/.pixzle/keys unless keys.directory is set in the config file.")
}

// keyStore opens the store named by the config file, or the default one.
func keyStore(c *common, errOut io.Writer) (*keys.KeyStore, string, bool) {
	cfg, _, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return nil, "", false
	}
	ks, err := keys.CreateKeyStore(cfg.Keys.Directory)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, "", false
	}
	alg := cfg.Keys.Algorithm
	if alg == "" {
		alg = keys.AlgEd25519
	}
	return ks, alg, true
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("key init", errOut)
	var name, seedHex, algorithm string
	var force bool
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional seed as 64 hex chars (for reproducible demos)")
	fs.StringVar(&algorithm, "algorithm", "", "Algorithm the printed public key is for")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, alg, ok := keyStore(c, errOut)
	if !ok {
		return 1
	}
	if algorithm != "" {
		alg = algorithm
	}

	var seed []byte
	var err error
	if seedHex != "" {
		if seed, err = keys.ParseSeedHex(seedHex); err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else if seed, err = keys.GenerateSeed(rand.Reader); err != nil {
		fmt.Fprintf(errOut, "rand: %v\n", err)
		return 1
	}

	pub, path, err := ks.InitializeRootKey(name, alg, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", pub)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("key derive", errOut)
	var from, role, algorithm string
	var force bool
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. publisher, archivist)")
	fs.StringVar(&algorithm, "algorithm", "", "Algorithm the printed public key is for")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, alg, ok := keyStore(c, errOut)
	if !ok {
		return 1
	}
	if algorithm != "" {
		alg = algorithm
	}
	pub, path, err := ks.DeriveKeyFromRole(from, role, alg, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", pub)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("key export", errOut)
	var name, role, algorithm string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (exports the derived role key)")
	fs.StringVar(&algorithm, "algorithm", "", "Algorithm to export the public key for")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, alg, ok := keyStore(c, errOut)
	if !ok {
		return 1
	}
	if algorithm != "" {
		alg = algorithm
	}
	pub, err := ks.ExportKey(name, role, alg)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, pub)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("key list", errOut)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	ks, _, ok := keyStore(c, errOut)
	if !ok {
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Identifier)
		for _, r := range e.Roles {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}
