package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// repl reads commands from stdin and dispatches them until EOF or "exit".
// Handler errors are printed, never fatal; the loop stays up so field work
// is not interrupted by a transient failure.
func (a *App) repl(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if a.isUnlocked() {
			fmt.Printf("datapro [%s]> ", a.user.Name)
		} else {
			fmt.Print("datapro> ")
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			a.printHelp()
		case "login":
			err = a.login(ctx)
		case "unlock":
			err = a.unlock(ctx)
		case "exit", "quit":
			return
		default:
			if !a.isUnlocked() {
				fmt.Println("unlock first (or login to enroll)")
				continue
			}
			switch cmd {
			case "forms":
				err = a.listForms(ctx)
			case "list":
				err = a.listDatapoints(ctx, args, true)
			case "drafts":
				err = a.listDatapoints(ctx, args, false)
			case "sync":
				err = a.syncNow(ctx)
			case "pull":
				err = a.pullNow(ctx)
			case "status":
				err = a.status(ctx)
			case "logout":
				err = a.logout(ctx)
			default:
				fmt.Printf("unknown command %q, try help\n", cmd)
			}
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (a *App) printHelp() {
	if a.isUnlocked() {
		fmt.Println("Available commands: forms, list <form-id>, drafts <form-id>, sync, pull, status, logout, exit")
	} else {
		fmt.Println("Available commands: login, unlock, exit")
	}
}
