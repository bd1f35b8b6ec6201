// Command client is a minimal terminal chat client: it prints every frame
// the server sends and frames every line typed on stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/NicolasHaas/gotalk/pkg/logging"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8189", "Chat server address")
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	flag.Parse()

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: "text",
		Output: os.Stderr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		slog.Error("connect failed", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Reader goroutine: print server frames until the connection drops or
	// the server acknowledges our exit.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			text, err := protocol.ReadFrame(conn)
			if err != nil {
				slog.Debug("connection closed", "err", err)
				return
			}
			if text == protocol.TokenExitOK {
				return
			}
			fmt.Println(text)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := protocol.WriteFrame(conn, line); err != nil {
			slog.Error("send failed", "err", err)
			break
		}
	}
	<-done
}
