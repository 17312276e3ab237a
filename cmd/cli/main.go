package main

import (
	"context"
	"os"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).execute(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
