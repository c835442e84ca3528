package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/projgen/cmd/projgen/commands"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("projgen"),
		kong.Description("Generate build solutions from per-directory project declarations."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, &cli); err != nil {
		perrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
