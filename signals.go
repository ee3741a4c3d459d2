package gardenqueue

import (
	"os"
	"os/signal"
	"syscall"
)

// signals returns a channel that receives a value when the process
// should quit.
func signals() <-chan bool {
	quit := make(chan bool)

	go func() {
		sigs := make(chan os.Signal, 1)
		defer close(sigs)

		signal.Notify(sigs, syscall.SIGQUIT, syscall.SIGTERM, os.Interrupt)
		defer signal.Stop(sigs)

		<-sigs
		quit <- true
	}()

	return quit
}
