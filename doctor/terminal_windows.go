//go:build windows

package doctor

import (
	"os"
	"os/signal"
)

func stdinFd() int  { return int(os.Stdin.Fd()) }
func stdoutFd() int { return int(os.Stdout.Fd()) }

func resetTerminal() {
	// Not needed on Windows
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}
