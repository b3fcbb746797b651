package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"xdao.co/pixzle/sealed"
)

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	fs, _ := newFlagSet("seal", errOut)
	seal := addSealFlags(fs)

	var recipients []string
	var outPath string
	var workFactor int
	fs.StringArrayVarP(&recipients, "recipient", "r", nil, "age recipient (age1...); repeatable. Without one a passphrase is used")
	fs.StringVarP(&outPath, "output", "o", "", "Sealed file (default <manifest>"+sealed.FileSuffix+")")
	fs.IntVar(&workFactor, "work-factor", 0, "scrypt work factor (log2) for passphrase sealing")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle seal <manifest> [--recipient <age1...>] [-o <file>]")
		return 2
	}
	in := fs.Arg(0)
	plain, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	if sealed.IsSealed(plain) {
		fmt.Fprintf(errOut, "%s is already sealed\n", in)
		return 1
	}

	var ciphertext []byte
	if len(recipients) > 0 {
		ciphertext, err = sealed.Encrypt(plain, recipients)
	} else {
		pass, perr := seal.passphrase(errOut, true)
		if perr != nil {
			fmt.Fprintf(errOut, "%v\n", perr)
			return 2
		}
		ciphertext, err = sealed.EncryptPassphrase(plain, pass, workFactor)
	}
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	if outPath == "" {
		outPath = in + sealed.FileSuffix
	}
	if err := os.WriteFile(outPath, ciphertext, 0o600); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, outPath)
	return 0
}

func cmdUnseal(args []string, out io.Writer, errOut io.Writer) int {
	fs, _ := newFlagSet("unseal", errOut)
	seal := addSealFlags(fs)

	var outPath string
	fs.StringVarP(&outPath, "output", "o", "", "Plain file (default: input without "+sealed.FileSuffix+", or stdout when that is not possible)")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle unseal <file> [--identity <file>] [-o <file>]")
		return 2
	}
	in := fs.Arg(0)
	data, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	if !sealed.IsSealed(data) {
		fmt.Fprintf(errOut, "%s is not sealed\n", in)
		return 1
	}
	plain, err := seal.unseal(data, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "unseal: %v\n", err)
		return 1
	}
	if outPath == "" && strings.HasSuffix(in, sealed.FileSuffix) {
		outPath = strings.TrimSuffix(in, sealed.FileSuffix)
	}
	if outPath == "" || outPath == "-" {
		_, _ = out.Write(plain)
		return 0
	}
	if err := os.WriteFile(outPath, plain, 0o600); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, outPath)
	return 0
}
