// Command hashdb is a small interactive shell over a single int64-keyed
// extendible hash index, for exercising insert/get/delete/print/verify by
// hand.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"extendhash/pkg/config"
	"extendhash/pkg/hash"
	"extendhash/pkg/pager"
	"extendhash/pkg/repl"

	"github.com/google/uuid"
)

func setupCloseHandler(c *hash.IndexCoordinator[int64, int64]) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("closehandler invoked")
		c.Close()
		os.Exit(0)
	}()
}

func main() {
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var dbFlag = flag.String("db", "data/hashdb.db", "backing file for the index")
	flag.Parse()

	pgr, err := pager.New(*dbFlag)
	if err != nil {
		panic(err)
	}

	c, err := hash.NewIndexCoordinator[int64, int64](
		pgr,
		hash.Int64Codec,
		hash.Int64Codec,
		hash.XxHasher[int64](hash.Int64Codec),
		hash.Int64Comparator,
	)
	if err != nil {
		panic(err)
	}
	defer c.Close()
	setupCloseHandler(c)

	prompt := config.GetPrompt(*promptFlag)
	r, err := repl.CombineRepls([]*repl.REPL{hash.IndexRepl(c)})
	if err != nil {
		fmt.Println(err)
		return
	}

	r.Run(uuid.New(), prompt, nil, nil)
}
