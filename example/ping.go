package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/taskping/taskping/network/ping"
)

func main() {
	var count = 3
	var timeout = ping.DefaultTimeout
	var interval = ping.DefaultInterval
	var dataSize = ping.DefaultSize

	flag.IntVar(&count, "count", count, "count of pings to send to each target")
	flag.DurationVar(&timeout, "timeout", timeout, "individual target reply timeout")
	flag.DurationVar(&interval, "interval", interval, "interval between sending ping packets")
	flag.IntVar(&dataSize, "data-size", dataSize, "amount of ping data to send, in bytes")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Printf("Usage of %s www.ip8.me\n", os.Args[0])
		flag.PrintDefaults()
		return
	}

	var wg sync.WaitGroup
	reports := make([]*ping.Report, flag.NArg())
	for i, host := range flag.Args() {
		s := ping.New(
			ping.CountOption(count),
			ping.TimeoutOption(timeout),
			ping.SizeOption(dataSize),
			ping.IntervalOption(interval))
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			r, err := s.Run(host)
			if err != nil {
				log.Fatal(err)
			}
			reports[i] = r
		}(i, host)
	}
	wg.Wait()
	for _, r := range reports {
		fmt.Println(r.String())
	}
}
