// Command vigenere enciphers or deciphers text with a repeating key.
//
// Usage:
//
//	vigenere [-d | -e] [-m message] key
//
// Without -m the command transforms stdin to stdout. With no arguments on a
// terminal it prompts for the message and the key.
//
// Examples:
//
//	vigenere lemon < plain.txt > message.enc
//	vigenere -d lemon < message.enc
//	vigenere -m "Hello, world!" key
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"kasiski/internal/term"
	"kasiski/internal/vigenere"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, term.IsTerminal(os.Stdin)))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, interactive bool) int {
	fs := flag.NewFlagSet("vigenere", flag.ContinueOnError)
	fs.SetOutput(stderr)
	decrypt := fs.Bool("d", false, "decipher")
	encrypt := fs.Bool("e", false, "encipher (default)")
	message := fs.String("m", "", "transform this message instead of stdin")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: vigenere [-d | -e] [-m message] key\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nWith no key on a terminal, the message and key are prompted for.\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	usageError := func(msg string) int {
		fmt.Fprintf(stderr, "vigenere: %s\n\n", msg)
		fs.Usage()
		return exitUsage
	}
	fatal := func(err error) int {
		fmt.Fprintf(stderr, "vigenere: %v\n", err)
		return exitFatal
	}

	if *decrypt && *encrypt {
		return usageError("-d and -e are mutually exclusive")
	}
	if fs.NArg() > 1 {
		return usageError("too many arguments")
	}

	newCipher := vigenere.NewEncrypter
	if *decrypt {
		newCipher = vigenere.NewDecrypter
	}

	if fs.NArg() == 0 {
		if !interactive {
			return usageError("key required")
		}
		if err := prompt(stdin, stdout, newCipher, *message); err != nil {
			return fatal(err)
		}
		return exitOK
	}

	c, err := newCipher(fs.Arg(0))
	if err != nil {
		return fatal(err)
	}

	if isSet(fs, "m") {
		out := []byte(*message)
		c.Transform(out, out)
		fmt.Fprintln(stdout, string(out))
		return exitOK
	}

	if _, err := c.Stream(stdout, stdin); err != nil {
		return fatal(err)
	}
	return exitOK
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// prompt asks for the message, unless one was given, and then the key.
func prompt(stdin io.Reader, stdout io.Writer, newCipher func(string) (*vigenere.Cipher, error), message string) error {
	r := bufio.NewReader(stdin)
	f, _ := stdin.(*os.File)

	if message == "" {
		var err error
		message, err = term.Prompt(stdout, r, "Enter the message: ")
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
	}
	key, err := term.PromptSecret(stdout, r, f, "Enter the key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}

	c, err := newCipher(key)
	if err != nil {
		return err
	}
	out := []byte(message)
	c.Transform(out, out)
	_, err = fmt.Fprintf(stdout, "%s\n", out)
	return err
}
