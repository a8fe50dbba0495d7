// The server command is the entrypoint for running a full session-fleet
// backend: one main server plus however many session servers get
// provisioned on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Popo-Studios/NetCoreServer/internal"
	"github.com/Popo-Studios/NetCoreServer/internal/core"
)

var configFlag = flag.String("config", "./", "Path to the directory containing the server config file")

func main() {
	flag.Parse()

	config := core.LoadConfig(*configFlag)
	fmt.Println("using configuration file:", *configFlag)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(*configFlag); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	controller := &internal.Controller{
		Config:            config,
		LoginFunc:         loginFunc,
		UsernameProvider:  usernameProvider,
		SessionGenerators: sessionGenerators,
	}
	if err := controller.Start(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	<-ctx.Done()
	controller.Shutdown()
	fmt.Println("shut down")
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	select {
	case <-c:
		fmt.Println("hard exiting (killed)")
		os.Exit(0)
	case <-make(chan struct{}):
	}
}
