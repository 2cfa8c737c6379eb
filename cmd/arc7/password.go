package main

import (
	"errors"
	"os"

	"github.com/spf13/pflag"

	"github.com/bamsammich/arc7/internal/secret"
	"github.com/bamsammich/arc7/internal/ui"
)

type passwordFlags struct {
	plain  string
	stdin  bool
	prompt bool
}

func (p *passwordFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&p.plain, "password", "p", "", "archive password (visible in the process list; prefer --prompt)")
	fs.BoolVar(&p.stdin, "password-stdin", false, "read the password from the first line of stdin")
	fs.BoolVar(&p.prompt, "prompt", false, "prompt for the password without echo")
}

// resolve reads the password flags. A plain password combined with a sealed
// one is passed through unchanged so the request is rejected as ambiguous.
func (p *passwordFlags) resolve(a *app) (secret.Spec, error) {
	spec := secret.Spec{Plain: p.plain}
	switch {
	case p.stdin && p.prompt:
		return secret.Spec{}, usageError{errors.New("--password-stdin and --prompt are mutually exclusive")}
	case p.stdin:
		s, err := secret.ReadLine(a.stdin)
		if err != nil {
			return secret.Spec{}, err
		}
		spec.Secure = s
	case p.prompt:
		f, ok := a.stdin.(*os.File)
		if !ok || !ui.IsTTY(f.Fd()) {
			return secret.Spec{}, usageError{errors.New("--prompt needs a terminal on stdin")}
		}
		s, err := secret.Prompt(int(f.Fd()), a.stderr, "Password: ")
		if err != nil {
			return secret.Spec{}, err
		}
		spec.Secure = s
	}
	return spec, nil
}
