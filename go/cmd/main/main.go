package main

import (
	"github.com/lunixbochs/rvexec/go/cmd"

	_ "github.com/lunixbochs/rvexec/go/cmd/load"
	_ "github.com/lunixbochs/rvexec/go/cmd/phdr"
	_ "github.com/lunixbochs/rvexec/go/cmd/snap"
)

func main() { cmd.Main() }
