package cmd

import (
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/spf13/pflag"
)

// levelFlag is a --log-level value rejecting unknown level names at parse
// time.
type levelFlag struct {
	level logging.LogLevel
	name  string
}

var _ pflag.Value = (*levelFlag)(nil)

func (f *levelFlag) String() string { return f.name }

func (f *levelFlag) Set(value string) error {
	level, err := logging.ParseLevel(value)
	if err != nil {
		return err
	}
	f.level = level
	f.name = value
	return nil
}

func (f *levelFlag) Type() string { return "level" }
