package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/matrixci/cmd/matrixci/commands"
	"git.home.luguber.info/inful/matrixci/internal/version"
)

func main() {
	cli := commands.CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("matrixci"),
		kong.Description("Staged, matrix-driven CI pipeline runner"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := ctx.Run(&commands.Global{})
	ctx.FatalIfErrorf(err)
}
