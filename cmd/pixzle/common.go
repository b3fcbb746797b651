package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"xdao.co/pixzle/config"
	"xdao.co/pixzle/engine"
	"xdao.co/pixzle/manifest"
	"xdao.co/pixzle/sealed"
	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/casconfig"
	"xdao.co/pixzle/storage/casregistry"
)

// passphraseEnv supplies the sealing passphrase non-interactively.
const passphraseEnv = "PIXZLE_PASSPHRASE"

// common holds the flags every subcommand accepts.
type common struct {
	configPath string
	verbose    bool
}

func newFlagSet(name string, errOut io.Writer) (*pflag.FlagSet, *common) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.SortFlags = false
	c := &common{}
	fs.StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvVar+")")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "Log debug detail to stderr")
	return fs, c
}

// parseExit maps a flag parse error to an exit code; -h is not a failure.
func parseExit(err error) int {
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	return 2
}

// setup loads the config file and builds the stderr logger.
func (c *common) setup(errOut io.Writer) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	cfg, err := config.Resolve(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// storageFlags selects a CAS either by registry backend name or from a
// casconfig file. Backend-specific flags are registered alongside.
type storageFlags struct {
	backend    string
	casConfig  string
	preferBack string
}

func addStorageFlags(fs *pflag.FlagSet) *storageFlags {
	s := &storageFlags{}
	fs.StringVar(&s.backend, "backend", "", "CAS backend: "+strings.Join(casregistry.Names(casregistry.UsageCLI), ", "))
	fs.StringVar(&s.casConfig, "cas-config", "", "JSON CAS config (multiple backends)")
	fs.StringVar(&s.preferBack, "prefer", "", "With --cas-config, backend name or id to write to first")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
	return s
}

// open resolves the CAS from flags first, then from the YAML config.
func (s *storageFlags) open(cfg *config.Config) (storage.CAS, func() error, error) {
	switch {
	case s.casConfig != "" && s.backend != "":
		return nil, nil, errors.New("--backend cannot be combined with --cas-config")
	case s.casConfig != "":
		cc, err := casconfig.LoadFile(s.casConfig)
		if err != nil {
			return nil, nil, err
		}
		return cc.Open(casregistry.UsageCLI, s.preferBack)
	case s.backend != "":
		return casregistry.Open(s.backend, casregistry.UsageCLI)
	case cfg.HasStorage():
		prefer := cfg.Storage.Preferred
		if s.preferBack != "" {
			prefer = s.preferBack
		}
		return cfg.CAS().Open(casregistry.UsageCLI, prefer)
	default:
		return nil, nil, errors.New("no storage selected: use --backend, --cas-config or a storage section in the config file")
	}
}

func closeQuietly(closeFn func() error) {
	if closeFn != nil {
		_ = closeFn()
	}
}

// sealFlags names the material that opens a sealed manifest.
type sealFlags struct {
	identity       string
	passphraseFile string
}

func addSealFlags(fs *pflag.FlagSet) *sealFlags {
	s := &sealFlags{}
	fs.StringVar(&s.identity, "identity", "", "age identity file (AGE-SECRET-KEY-1...) for sealed manifests")
	fs.StringVar(&s.passphraseFile, "passphrase-file", "", "File holding the passphrase for sealed manifests")
	return s
}

// unseal returns data unchanged unless it is age output.
func (s *sealFlags) unseal(data []byte, errOut io.Writer) ([]byte, error) {
	if !sealed.IsSealed(data) {
		return data, nil
	}
	if s.identity != "" {
		key, err := readIdentity(s.identity)
		if err != nil {
			return nil, err
		}
		return sealed.Decrypt(data, key)
	}
	pass, err := s.passphrase(errOut, false)
	if err != nil {
		return nil, err
	}
	return sealed.DecryptPassphrase(data, pass)
}

// passphrase reads from --passphrase-file, $PIXZLE_PASSPHRASE or the
// terminal, in that order. confirm asks twice on a terminal.
func (s *sealFlags) passphrase(errOut io.Writer, confirm bool) (string, error) {
	if s.passphraseFile != "" {
		b, err := os.ReadFile(s.passphraseFile)
		if err != nil {
			return "", fmt.Errorf("read passphrase file: %w", err)
		}
		p := strings.TrimRight(string(b), "\r\n")
		if p == "" {
			return "", errors.New("passphrase file is empty")
		}
		return p, nil
	}
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no passphrase: stdin is not a terminal; use --passphrase-file or %s", passphraseEnv)
	}
	fmt.Fprint(errOut, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("passphrase is empty")
	}
	if confirm {
		fmt.Fprint(errOut, "Confirm passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(errOut)
		if err != nil {
			return "", fmt.Errorf("reading passphrase confirmation: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

// readIdentity returns the first AGE-SECRET-KEY line of an identity file,
// skipping comments as age-keygen writes them.
func readIdentity(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "AGE-SECRET-KEY-") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no age secret key in %s", path)
}

// readManifest loads a plain or sealed manifest file.
func readManifest(path string, s *sealFlags, errOut io.Writer) (*manifest.Manifest, error) {
	if path == "" {
		return nil, errors.New("manifest path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if s != nil {
		if b, err = s.unseal(b, errOut); err != nil {
			return nil, fmt.Errorf("unseal manifest: %w", err)
		}
	}
	return manifest.Parse(b)
}

// readFragmentDir loads dir/manifest.json and the fragments it names, as
// written by shuffle or get.
func readFragmentDir(dir string) (*manifest.Manifest, [][]byte, error) {
	m, err := engine.ReadManifestFile(filepath.Join(dir, manifest.JSONFileName))
	if err != nil {
		return nil, nil, err
	}
	fragments := make([][]byte, len(m.Images))
	for i := range m.Images {
		p := filepath.Join(dir, manifest.FragmentFileName(m, i))
		if fragments[i], err = os.ReadFile(p); err != nil {
			return nil, nil, fmt.Errorf("read fragment %d: %w", i, err)
		}
	}
	return m, fragments, nil
}

// writeFragmentDir is the inverse of readFragmentDir.
func writeFragmentDir(dir string, m *manifest.Manifest, fragments [][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := manifest.MarshalJSON(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.JSONFileName), b, 0o644); err != nil {
		return err
	}
	for i, data := range fragments {
		if err := os.WriteFile(filepath.Join(dir, manifest.FragmentFileName(m, i)), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
