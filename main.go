package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zeebo/clingy"
)

func main() {
	ok, err := clingy.Environment{
		Name: "profileview",
		Args: os.Args[1:],
	}.Run(context.Background(), func(cmds clingy.Commands) {
		cmds.New("markers", "derive the markers of every thread", new(cmdMarkers))
		cmds.New("ipc", "list correlated IPC messages", new(cmdIPC))
		cmds.New("flows", "report the flows of a profile", new(cmdFlows))
		cmds.New("diff", "compare one thread of two profiles", new(cmdDiff))
		cmds.New("merge", "merge threads of a profile into one", new(cmdMerge))
		cmds.New("sanitize", "drop and redact markers", new(cmdSanitize))
		cmds.New("schema", "print the marker schema registry", new(cmdSchema))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	}
	if !ok || err != nil {
		os.Exit(1)
	}
}
