package main

import (
	"context"
	"fmt"

	"github.com/a-h/pdfprocessor"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(pdfprocessor.Version)
	return nil
}
