package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vaultpass/passgen/internal/crypto"
)

var errInvalidCount = errors.New("count must be at least 1")

type generateFlags struct {
	count int
	opts  crypto.GenerationOptions
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{opts: crypto.DefaultGenerationOptions()}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one or more passwords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.count, "count", "c", 1, "number of passwords to generate")
	flags.IntVarP(&f.opts.Length, "length", "l", f.opts.Length, "password length")
	flags.BoolVar(&f.opts.Ambiguous, "ambiguous", f.opts.Ambiguous, "allow ambiguous characters (0, O, 1, l)")
	flags.BoolVar(&f.opts.Uppercase, "uppercase", f.opts.Uppercase, "include uppercase letters")
	flags.BoolVar(&f.opts.Lowercase, "lowercase", f.opts.Lowercase, "include lowercase letters")
	flags.BoolVar(&f.opts.Number, "number", f.opts.Number, "include numbers")
	flags.BoolVar(&f.opts.Special, "special", f.opts.Special, "include special characters")
	flags.IntVar(&f.opts.MinUppercase, "min-uppercase", f.opts.MinUppercase, "minimum uppercase letters")
	flags.IntVar(&f.opts.MinLowercase, "min-lowercase", f.opts.MinLowercase, "minimum lowercase letters")
	flags.IntVar(&f.opts.MinNumber, "min-number", f.opts.MinNumber, "minimum numbers")
	flags.IntVar(&f.opts.MinSpecial, "min-special", f.opts.MinSpecial, "minimum special characters")

	return cmd
}

func runGenerate(cmd *cobra.Command, f *generateFlags) error {
	if f.count < 1 {
		return errInvalidCount
	}

	opts := partialFromFlags(cmd.Flags(), f.opts)
	if crypto.Normalize(crypto.Merge(crypto.DefaultGenerationOptions(), opts)).Length > crypto.MaxLength {
		return crypto.ErrLengthTooLong
	}

	for i := 0; i < f.count; i++ {
		password, err := crypto.Generate(opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), password)
	}
	return nil
}

// partialFromFlags keeps only the options the user set explicitly.
func partialFromFlags(flags *pflag.FlagSet, opts crypto.GenerationOptions) crypto.PartialOptions {
	var p crypto.PartialOptions
	intFlag := func(name string, v int, dst **int) {
		if flags.Changed(name) {
			*dst = &v
		}
	}
	boolFlag := func(name string, v bool, dst **bool) {
		if flags.Changed(name) {
			*dst = &v
		}
	}

	intFlag("length", opts.Length, &p.Length)
	boolFlag("ambiguous", opts.Ambiguous, &p.Ambiguous)
	boolFlag("uppercase", opts.Uppercase, &p.Uppercase)
	boolFlag("lowercase", opts.Lowercase, &p.Lowercase)
	boolFlag("number", opts.Number, &p.Number)
	boolFlag("special", opts.Special, &p.Special)
	intFlag("min-uppercase", opts.MinUppercase, &p.MinUppercase)
	intFlag("min-lowercase", opts.MinLowercase, &p.MinLowercase)
	intFlag("min-number", opts.MinNumber, &p.MinNumber)
	intFlag("min-special", opts.MinSpecial, &p.MinSpecial)
	return p
}
