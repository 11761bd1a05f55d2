package main

import (
	"context"
	"fmt"
	"os"

	"go.miragespace.co/filering/cmd/filering"
	"go.miragespace.co/filering/util"
)

func main() {
	util.UseCategoryHelp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := filering.App.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
