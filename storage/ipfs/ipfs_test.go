package ipfs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/testkit"
)

func TestIPFS_Conformance(t *testing.T) {
	bin, err := exec.LookPath("ipfs")
	if err != nil {
		t.Skip("ipfs binary not installed")
	}
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		repo := t.TempDir()
		env := append(os.Environ(), "IPFS_PATH="+repo)
		cmd := exec.Command(bin, "init", "--profile=test")
		cmd.Env = env
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("ipfs init failed: %v: %s", err, out)
		}
		return New(Options{Bin: bin, Env: env})
	})
}

func TestOptionsFor(t *testing.T) {
	opts := optionsFor("kubo", "/srv/ipfs", true)
	if opts.Bin != "kubo" || !opts.Pin {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if got := opts.Env[len(opts.Env)-1]; got != "IPFS_PATH=/srv/ipfs" {
		t.Fatalf("IPFS_PATH not set: %q", got)
	}
	if opts := optionsFor("", "", false); opts.Env != nil {
		t.Fatalf("Env should stay nil without a repo path")
	}
	if New(Options{}).bin != "ipfs" {
		t.Fatalf("default binary should be ipfs")
	}
}

func TestRun_ReportsStderr(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fake-ipfs")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'block not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := New(Options{Bin: script})
	_, err := c.run(nil, "block", "get", "x")
	if err == nil || !strings.Contains(err.Error(), "block not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if !isLikelyNotFound(err) {
		t.Fatalf("isLikelyNotFound(%v) = false", err)
	}
}
