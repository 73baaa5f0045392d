package main

import (
	"Go2NetSentinel/internal/capture"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	limit := flag.Int("n", 20, "Number of packets to print (0 = all)")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n count] <path_to_pcap_file>")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	i := 0
	printer := model.PacketSinkFunc(func(key model.FlowKey, pkt model.Packet) {
		if *limit > 0 && i >= *limit {
			cancel()
			return
		}
		i++
		fmt.Printf("[%s] %s len=%d flags=%q service=%s flag=%s\n",
			pkt.Timestamp.Format("15:04:05.000"), key, pkt.Length, pkt.Flags,
			features.ClassifyService(int(key.DstPort)), features.ClassifyFlags(pkt.Flags))
	})

	if err := capture.NewFileSource(flag.Arg(0)).Run(ctx, printer); err != nil {
		fmt.Fprintln(os.Stderr, "Parse error:", err)
		os.Exit(1)
	}
}
